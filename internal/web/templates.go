package web

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
)

var pages = template.Must(template.New("pages").Parse(`
{{define "head"}}<!doctype html>
<html lang="en"><head><meta charset="utf-8"><title>{{.}}</title></head><body>{{end}}
{{define "foot"}}</body></html>{{end}}

{{define "sign_in"}}{{template "head" "Sign in"}}
<h1>Sign in</h1>
{{with .Error}}<p role="alert">{{.}}</p>{{end}}
<form method="post" action="{{.Action}}">
  <label>Email <input type="email" name="email" value="{{.Email}}" required></label>
  <label>Password <input type="password" name="password" required></label>
  <button type="submit">Sign in</button>
</form>
<p><a href="{{.AltPath}}">Create an account</a></p>
{{template "foot"}}{{end}}

{{define "sign_up"}}{{template "head" "Sign up"}}
<h1>Sign up</h1>
{{with .Error}}<p role="alert">{{.}}</p>{{end}}
<form method="post" action="{{.Action}}">
  <label>Name <input type="text" name="name" value="{{.Name}}" required></label>
  <label>Email <input type="email" name="email" value="{{.Email}}" required></label>
  <label>Password <input type="password" name="password" required></label>
  <button type="submit">Sign up</button>
</form>
<p><a href="{{.AltPath}}">Already have an account?</a></p>
{{template "foot"}}{{end}}

{{define "dashboard"}}{{template "head" "Dashboard"}}
<h1>Dashboard</h1>
{{with .Error}}<p role="alert">{{.}}</p>{{end}}
<dl>{{range .Fields}}<dt>{{.Key}}</dt><dd>{{.Value}}</dd>{{end}}</dl>
<form method="post" action="/sign_out"><button type="submit">Sign out</button></form>
{{template "foot"}}{{end}}
`))

type formPage struct {
	Action  string
	AltPath string
	Error   string
	Name    string
	Email   string
}

type field struct {
	Key   string
	Value any
}

type dashboardPage struct {
	Error  string
	Fields []field
}

func render(ctx context.Context, w http.ResponseWriter, name string, data any, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(ctx, "failed to render page", "page", name, "error", err)
	}
}
