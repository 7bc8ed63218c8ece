/*
 * Copyright 2024 caiflower Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/caiflower/hussar/pkg/logger"
	"github.com/caiflower/hussar/web/protocol"
	"github.com/caiflower/hussar/web/router"
	"github.com/caiflower/hussar/web/session"
	"github.com/caiflower/hussar/web/static"
)

const (
	usernameKey  = "username"
	demoPassword = "lemon42"
)

// app is the login and upload demo served next to the document root.
type app struct {
	store     session.Store
	docRoot   string
	uploadDir string
}

func (a *app) register(r *router.Router) {
	r.RegisterFallback(static.Handler(a.docRoot))
	r.GET("/", a.home)
	r.GET("/login", a.loginPage)
	r.POST("/login", a.login)
	r.GET("/logout", a.logout)
	r.GET("/upload", a.uploadPage)
	r.RegisterAlt("PUT", "/upload", a.upload)
}

func (a *app) username(req *protocol.Request) string {
	return a.store.Get(req.SessionID, usernameKey)
}

func withMessage(body string, req *protocol.Request) string {
	if message, ok := req.Query["message"]; ok {
		body += "<br><p>" + protocol.HTMLEscape(message) + "</p>"
	}
	return body
}

func (a *app) home(req *protocol.Request, resp *protocol.Response) {
	if name := a.username(req); name != "" {
		resp.SetBody("<h1>Welcome to the website, <b>" + protocol.HTMLEscape(name) + "</b>!</h1><br>" +
			"<p>Click <a href=\"/upload\">HERE</a> to go to the upload page</p>" +
			"<p>Click <a href=\"/logout\">HERE</a> to log out.</p>")
		return
	}
	resp.SetBody("<h1>Welcome to the website!</h1><br>" +
		"<p>Click <a href=\"/login\">HERE</a> to go to the login page</p>" +
		"<p>Click <a href=\"/upload\">HERE</a> to go to the upload page</p>")
}

const loginForm = `
<form action="/login" method="post">
<label for="name">Username: </label>
<input type="text" id="username" name="username" required><br>
<label for="password">Password: </label>
<input type="password" id="password" name="password" required><br>
<input type="submit" value="Submit">
</form>`

func (a *app) loginPage(req *protocol.Request, resp *protocol.Response) {
	if a.username(req) != "" {
		resp.Redirect("/")
		return
	}
	resp.SetBody(withMessage(loginForm, req))
}

func (a *app) login(req *protocol.Request, resp *protocol.Response) {
	if a.username(req) != "" {
		resp.Redirect("/")
		return
	}

	name, okName := req.Form[usernameKey]
	password, okPassword := req.Form["password"]
	if okName && okPassword && password == demoPassword && a.store.Set(req.SessionID, usernameKey, name) {
		logger.Info("user %s logged in", name)
		resp.Redirect("/")
		return
	}
	resp.Redirect("/login?message=Failed+to+login.")
}

func (a *app) logout(req *protocol.Request, resp *protocol.Response) {
	if a.store.DeleteKey(req.SessionID, usernameKey) {
		a.store.Destroy(req.SessionID)
		resp.Redirect("/login?message=Logged+out.")
		return
	}
	resp.Redirect("/login?message=Not+logged+in.")
}

const uploadForm = `
<script>
function upload() {
    let files = document.getElementById("file").files;
    if (files.length === 0) {
        return;
    }
    let ajax = new XMLHttpRequest;
    ajax.onreadystatechange = function() {
        if (ajax.readyState == 4) {
            document.getElementById("response").innerHTML = ajax.responseText;
        }
    };
    let formData = new FormData;
    formData.append('file', files[0]);
    ajax.open("PUT", "/upload", true);
    ajax.send(formData);
}
</script>
<form action="/upload" method="POST">
<label for="file">File: </label>
<input type="file" id="file" name="file" required><br>
<input type="button" value="Submit" onclick=upload()>
</form>
<div id="response"></div>`

func (a *app) uploadPage(req *protocol.Request, resp *protocol.Response) {
	if a.username(req) == "" {
		resp.Redirect("/login?message=Log+in+to+upload+content")
		return
	}
	resp.SetBody(withMessage(uploadForm, req))
}

func (a *app) upload(req *protocol.Request, resp *protocol.Response) {
	if a.username(req) == "" {
		resp.Page(protocol.StatusUnauthorized, "<h1>401: Unauthorized</h1>")
		return
	}

	if err := os.MkdirAll(a.uploadDir, 0o755); err != nil {
		logger.Error("create upload dir %s failed. Error: %s", a.uploadDir, err.Error())
		resp.InternalError()
		return
	}

	var b strings.Builder
	b.WriteString("<h1>Uploaded File:</h1><br>\n")
	for _, file := range req.Files {
		b.WriteString("<h2>" + protocol.HTMLEscape(file.FieldName) + ": " + protocol.HTMLEscape(file.FileName) + "</h2><br>\n")
		b.WriteString("<p>mime: " + protocol.HTMLEscape(file.MimeType) + "</p><br>\n")

		name := filepath.Base(file.FileName)
		if name == "." || name == string(filepath.Separator) {
			continue
		}
		if err := os.WriteFile(filepath.Join(a.uploadDir, name), file.Data, 0o644); err != nil {
			logger.Error("store upload %s failed. Error: %s", name, err.Error())
			continue
		}
		logger.Info("File uploaded: %s", name)
	}
	resp.SetBody(b.String())
}
