package templates

func GetSearchTemplate() string {
	return searchContent
}

var searchContent = `{{define "content"}}
<form method="GET" action="/search" class="inline">
  <label for="q" class="sr-only">Query</label>
  <input type="text" id="q" name="q" value="{{.Query}}" placeholder="ubuntu, linux or keywords">
  <input type="number" name="limit" value="{{.Limit}}" min="1" max="200">
  <button type="submit">search</button>
  <details>
    <summary>relays</summary>
    <textarea name="relays" rows="5" cols="48">{{join .Relays "\n"}}</textarea>
  </details>
</form>
{{if .Searched}}
<p class="status" aria-live="polite">{{.Status}}</p>
{{if .Plan.Tags}}<p class="meta">tags: {{join .Plan.Tags ", "}}</p>{{end}}
{{if .Plan.Keywords}}<p class="meta">keywords: {{join .Plan.Keywords " "}}</p>{{end}}
<div id="results">
  {{range .Results}}{{template "result" .}}{{end}}
</div>
{{end}}
{{end}}`
