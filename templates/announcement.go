package templates

func GetAnnouncementTemplate() string {
	return announcementContent
}

var announcementContent = `{{define "content"}}
{{with .Announcement}}
<article>
  <h2>{{.Title}}</h2>
  <div class="meta">
    <code>{{.InfoHash}}</code> · {{fmtBytes .TotalSize}}
    {{if .CreatedAt}} · {{formatTime .CreatedAt}}{{end}}
    {{if .Author}} · author <code title="{{.Author}}">{{shortID .Author}}</code>{{end}}
    {{if .Relay}} · via {{.Relay}}{{end}}
  </div>
  <div>
    {{range .Topics}}<span class="chip">t:{{.}}</span>{{end}}
    {{range .Refs}}<span class="chip ref">i:{{.}}</span>{{end}}
  </div>
  <p>
    <a href="{{.MagnetURI}}">magnet link</a> ·
    <a href="/torrent?magnet={{urlquery .MagnetURI}}&amp;id={{.EventID}}">load in browser</a>
  </p>
</article>
{{end}}
{{if .QRCode}}<img src="{{.QRCode}}" alt="magnet QR code" width="192" height="192">{{end}}
{{if .ContentHTML}}<section class="content">{{.ContentHTML}}</section>{{end}}
{{with .Announcement}}
{{if .Files}}
<h3>Files</h3>
<table>
  {{range .Files}}<tr><td>{{.Name}}</td><td>{{fmtBytes .Size}}</td></tr>{{end}}
</table>
{{end}}
{{if .Trackers}}
<h3>Trackers</h3>
<ul>{{range .Trackers}}<li><code>{{.}}</code></li>{{end}}</ul>
{{end}}
{{end}}
{{end}}`
