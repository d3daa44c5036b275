package line

import (
	"net/url"
	"strings"
)

const (
	// NotifyBotHost serves the notify-bot web pages and their JSON APIs.
	NotifyBotHost = "https://notify-bot.line.me"
	// AccessHost serves the QR login handshake.
	AccessHost = "https://access.line.me"
)

// Endpoints holds the base URLs of the two web hosts. Tests point both at one server.
type Endpoints struct {
	NotifyBot string
	Access    string
}

func (e Endpoints) withDefaults() Endpoints {
	if strings.TrimSpace(e.NotifyBot) == "" {
		e.NotifyBot = NotifyBotHost
	}
	if strings.TrimSpace(e.Access) == "" {
		e.Access = AccessHost
	}
	e.NotifyBot = strings.TrimRight(e.NotifyBot, "/")
	e.Access = strings.TrimRight(e.Access, "/")
	return e
}

// Login is the web login page; it redirects to access.line.me with the login-flow query.
func (e Endpoints) Login() string { return e.NotifyBot + "/login" }

// MyPage lists the user's tokens and carries the _csrf form field.
func (e Endpoints) MyPage() string { return e.NotifyBot + "/my" }

// IssueToken accepts the personal access token form.
func (e Endpoints) IssueToken() string { return e.NotifyBot + "/my/personalAccessToken" }

// GroupList is the paginated group list API.
func (e Endpoints) GroupList() string { return e.NotifyBot + "/api/groupList" }

// QRSession returns the QR image path for a new login.
func (e Endpoints) QRSession() string { return e.Access + "/qrlogin/v1/session" }

// QRWait long-polls until the QR code is scanned.
func (e Endpoints) QRWait() string { return e.Access + "/qrlogin/v1/qr/wait" }

// PINWait long-polls until the PIN is confirmed in the app.
func (e Endpoints) PINWait() string { return e.Access + "/qrlogin/v1/pin/wait" }

// ResolveAccess resolves a path returned by the handshake against the access host.
func (e Endpoints) ResolveAccess(path string) (string, error) {
	base, err := url.Parse(e.Access + "/")
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// Seeds lists the hosts a restored cookie jar is attached to.
func (e Endpoints) Seeds() []string {
	return []string{e.NotifyBot, e.Access}
}
