package line

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

var validate = validator.New()

// Cookies is a flattened cookie jar, the shape persisted in cookie.json.
type Cookies map[string]string

// Group is a LINE group the user can issue a token for.
type Group struct {
	Mid        string `json:"mid" validate:"required"`
	Name       string `json:"name" validate:"required"`
	PictureURL string `json:"pictureUrl"`
}

// GroupListResponse is one page of /api/groupList.
type GroupListResponse struct {
	Status  int     `json:"status"`
	Results []Group `json:"results" validate:"dive"`
}

// QRSessionResponse describes the QR image for a new login.
type QRSessionResponse struct {
	QRCodePath string `json:"qrCodePath" validate:"required"`
}

// Code is the session code, the last segment of the QR image path.
func (r QRSessionResponse) Code() string {
	return path.Base(strings.TrimRight(r.QRCodePath, "/"))
}

// WaitResponse is returned by both the QR and PIN long polls.
// Every field is nullable; absent and null read the same.
type WaitResponse struct {
	RedirectPath string
	ErrorCode    string
	Error        string
	PINCode      string
}

// Rejected reports whether LINE returned a non-null error code.
func (r WaitResponse) Rejected() bool { return r.ErrorCode != "" }

// IssueTokenResponse carries a newly issued personal access token.
type IssueTokenResponse struct {
	Token string `json:"token" validate:"required"`
}

// decodeStrict checks that every key in required is present, unmarshals the
// body into out and runs the struct's validation tags.
func decodeStrict(body []byte, out any, required ...string) error {
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return errNotJSONObject
	}
	for _, key := range required {
		if !gjson.GetBytes(body, key).Exists() {
			return &missingFieldError{field: key}
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return err
	}
	return validate.Struct(out)
}

func decodeWait(body []byte) (WaitResponse, error) {
	if !gjson.ValidBytes(body) {
		return WaitResponse{}, errNotJSONObject
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return WaitResponse{}, errNotJSONObject
	}
	return WaitResponse{
		RedirectPath: nullableString(doc.Get("redirectPath")),
		ErrorCode:    nullableString(doc.Get("errorCode")),
		Error:        nullableString(doc.Get("error")),
		PINCode:      nullableString(doc.Get("pinCode")),
	}, nil
}

func nullableString(r gjson.Result) string {
	if !r.Exists() || r.Type == gjson.Null {
		return ""
	}
	return strings.TrimSpace(r.String())
}
