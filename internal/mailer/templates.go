package mailer

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

// Grant is one time-bounded download link in the customer email.
type Grant struct {
	URL       string
	ThumbURL  string
	ExpiresAt time.Time
}

type DownloadEmailData struct {
	Name       string
	TotalMajor string
	Grants     []Grant
}

type PickupEmailData struct {
	Name      string
	ItemCount int
}

type OpsPickupData struct {
	OrderID   string
	Email     string
	ItemCount int
}

var tmplFuncs = map[string]any{
	"expiry": func(t time.Time) string { return t.UTC().Format("2 Jan 2006 15:04 MST") },
}

var downloadHTML = htmltemplate.Must(htmltemplate.New("download").Funcs(tmplFuncs).Parse(`<html><body>
<p>Hi {{.Name}},</p>
<p>Thanks for your order! Your payment of &euro;{{.TotalMajor}} is confirmed.</p>
<p>Your photos are ready to download:</p>
<ul>
{{range .Grants}}<li><a href="{{.URL}}"><img src="{{.ThumbURL}}" width="120" alt="preview"/> Download</a> (link valid until {{expiry .ExpiresAt}})</li>
{{end}}</ul>
<p>See you in the water,<br/>Surfpix</p>
</body></html>`))

var downloadText = texttemplate.Must(texttemplate.New("download").Funcs(tmplFuncs).Parse(`Hi {{.Name}},

Thanks for your order! Your payment of EUR {{.TotalMajor}} is confirmed.

Your photos are ready to download:
{{range .Grants}}- {{.URL}} (valid until {{expiry .ExpiresAt}})
{{end}}
See you in the water,
Surfpix`))

var confirmationHTML = htmltemplate.Must(htmltemplate.New("confirmation").Parse(`<html><body>
<p>Hi {{.Name}},</p>
<p>Your order is confirmed. Your download links are on their way in a separate
email and will stay valid for {{.ValidDays}} days once they arrive.</p>
<p>See you in the water,<br/>Surfpix</p>
</body></html>`))

var confirmationText = texttemplate.Must(texttemplate.New("confirmation").Parse(`Hi {{.Name}},

Your order is confirmed. Your download links are on their way in a separate
email and will stay valid for {{.ValidDays}} days once they arrive.

See you in the water,
Surfpix`))

var pickupHTML = htmltemplate.Must(htmltemplate.New("pickup").Parse(`<html><body>
<p>Hi {{.Name}},</p>
<p>Your order with {{.ItemCount}} print(s) for pickup is confirmed.
We will contact you to arrange a pickup time.</p>
<p>See you in the water,<br/>Surfpix</p>
</body></html>`))

var pickupText = texttemplate.Must(texttemplate.New("pickup").Parse(`Hi {{.Name}},

Your order with {{.ItemCount}} print(s) for pickup is confirmed.
We will contact you to arrange a pickup time.

See you in the water,
Surfpix`))

var opsPickupText = texttemplate.Must(texttemplate.New("ops").Parse(`Pickup order {{.OrderID}}
Customer: {{.Email}}
Prints to prepare: {{.ItemCount}}`))

// RenderDownloadEmail renders the rich body plus a plain-text alternative
// for deliverability.
func RenderDownloadEmail(d DownloadEmailData) (html, text string, err error) {
	var hb, tb bytes.Buffer
	if err = downloadHTML.Execute(&hb, d); err != nil {
		return "", "", err
	}
	if err = downloadText.Execute(&tb, d); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}

func RenderConfirmationEmail(name string, validDays int) (html, text string, err error) {
	d := struct {
		Name      string
		ValidDays int
	}{Name: name, ValidDays: validDays}
	var hb, tb bytes.Buffer
	if err = confirmationHTML.Execute(&hb, d); err != nil {
		return "", "", err
	}
	if err = confirmationText.Execute(&tb, d); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}

func RenderPickupEmail(d PickupEmailData) (html, text string, err error) {
	var hb, tb bytes.Buffer
	if err = pickupHTML.Execute(&hb, d); err != nil {
		return "", "", err
	}
	if err = pickupText.Execute(&tb, d); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}

func RenderOpsPickupEmail(d OpsPickupData) (string, error) {
	var tb bytes.Buffer
	if err := opsPickupText.Execute(&tb, d); err != nil {
		return "", err
	}
	return tb.String(), nil
}
