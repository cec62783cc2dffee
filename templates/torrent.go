package templates

func GetTorrentTemplate() string {
	return torrentContent
}

var torrentContent = `{{define "content"}}
<form method="POST" action="/torrent" enctype="multipart/form-data" class="inline">
  <label for="source" class="sr-only">Magnet or info hash</label>
  <input type="text" id="source" name="source" value="{{.Source}}" placeholder="magnet:?xt=urn:btih:…">
  <label for="torrent-file">or a .torrent file</label>
  <input type="file" id="torrent-file" name="torrent" accept=".torrent,application/x-bittorrent">
  <label for="trackers" class="sr-only">Extra trackers</label>
  <input type="text" id="trackers" name="trackers" value="{{.ExtraTrackers}}" placeholder="extra trackers, comma separated">
  <button type="submit">load</button>
</form>
{{if .InfoHash}}
<h2>{{if .Name}}{{.Name}}{{else}}fetching metadata…{{end}}</h2>
<div class="meta"><code>{{.InfoHash}}</code> · {{len .Trackers}} trackers</div>
{{with .Stats}}
<div class="progress" role="progressbar" aria-valuenow="{{percent .Progress}}" aria-valuemin="0" aria-valuemax="100"><div style="width: {{percent .Progress}}%"></div></div>
<p class="status">
  {{if .Done}}done{{else}}{{percent .Progress}}%{{end}} ·
  {{fmtBytes .Downloaded}}{{if .HasInfo}} of {{fmtBytes .Length}}{{end}} ·
  ↓ {{fmtRate .DownloadRate}} · ↑ {{fmtRate .UploadRate}} ·
  {{.Peers}} peers
</p>
{{end}}
{{if .Preview}}{{with .Preview}}
<figure>
  {{if eq .Preview "video"}}<video src="/torrent/file/{{.Index}}" controls preload="metadata" style="max-width:100%"></video>{{end}}
  {{if eq .Preview "audio"}}<audio src="/torrent/file/{{.Index}}" controls preload="metadata"></audio>{{end}}
  {{if eq .Preview "image"}}<img src="/torrent/file/{{.Index}}" alt="{{.Name}}" style="max-width:100%">{{end}}
  <figcaption>{{.Name}}</figcaption>
</figure>
{{end}}{{end}}
{{if .Files}}
<h3>Files</h3>
<table>
  {{range .Files}}<tr>
    <td><a href="/torrent/file/{{.Index}}">{{.Name}}</a></td>
    <td>{{fmtBytes .Completed}} / {{fmtBytes .Length}}</td>
    <td>{{if .Preview}}{{.Preview}}{{end}}</td>
  </tr>{{end}}
</table>
{{end}}
{{end}}
{{end}}`
