package templates

// Page templates define a "content" block rendered inside "base".

func GetBaseTemplates() string {
	return baseTemplate + headerTemplate + resultTemplate
}

var baseTemplate = `{{define "base"}}<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}} - nostr-torrent</title>
  <style>
    body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 0 auto; padding: 1rem; color: #222; }
    a { color: #5b3cc4; }
    .status { color: #666; font-size: .9rem; margin: .5rem 0; }
    .result { border-bottom: 1px solid #eee; padding: .75rem 0; }
    .result h3 { margin: 0 0 .25rem; font-size: 1.05rem; }
    .meta, .files { color: #555; font-size: .85rem; }
    .chip { display: inline-block; background: #f1edff; border-radius: 3px; padding: 0 .35rem; margin-right: .25rem; font-size: .8rem; }
    .chip.ref { background: #eaf5ea; }
    .error { color: #b00020; }
    form.inline input[type=text] { width: 24rem; }
    .progress { background: #eee; height: .5rem; width: 100%; }
    .progress > div { background: #5b3cc4; height: 100%; }
    pre, code { white-space: pre-wrap; word-break: break-all; }
  </style>
</head>
<body>
  {{template "header" .}}
  <main id="main-content">
    {{if .Error}}<p class="error" role="alert">{{.Error}}</p>{{end}}
    {{template "content" .}}
  </main>
</body>
</html>
{{end}}`

var headerTemplate = `{{define "header"}}
<header>
  <nav>
    <a href="/search">search</a> ·
    <a href="/torrent">torrent</a>
  </nav>
</header>
{{end}}`

// resultTemplate renders one announcement in a result list
var resultTemplate = `{{define "result"}}
<div class="result" id="r-{{.EventID}}">
  <h3><a href="/announcement/{{.EventID}}">{{.Title}}</a></h3>
  <div class="meta">
    <code title="{{.InfoHash}}">{{.ShortInfoHash}}</code>
    {{if .TotalSize}} · {{fmtBytes .TotalSize}}{{end}}
    {{if .CreatedAt}} · {{humanTime .CreatedAt}}{{end}}
    {{if .Relay}} · via {{.Relay}}{{end}}
  </div>
  {{if .Files}}<div class="files">
    {{range firstFiles .Files}}{{.Name}} ({{fmtBytes .Size}})<br>{{end}}
    {{if gt (len .Files) 5}}… {{len .Files}} files{{end}}
  </div>{{end}}
  <div>
    {{range .Topics}}<span class="chip">t:{{.}}</span>{{end}}
    {{range .Refs}}<span class="chip ref">i:{{.}}</span>{{end}}
  </div>
  <div>
    <a href="{{.MagnetURI}}">magnet</a> ·
    <a href="/torrent?magnet={{urlquery .MagnetURI}}&amp;id={{.EventID}}">load</a>
  </div>
</div>
{{end}}`
