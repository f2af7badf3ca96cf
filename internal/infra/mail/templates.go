package mail

import (
	"fmt"
	"html/template"
	"strings"
)

const (
	// SubjectOTP is the subject line used for verification code mail.
	SubjectOTP = "Your Car Renthol verification code"
	// SubjectWelcome is the subject line used once an account is activated.
	SubjectWelcome = "Welcome to Car Renthol"
	// SubjectReset is the subject line used for password reset links.
	SubjectReset = "Reset your Car Renthol password"
)

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #1f2933;">
    <h2>Verify your email address</h2>
    <p>Hi {{.Username}},</p>
    <p>Use the code below to finish creating your Car Renthol account.</p>
    <p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">{{.Code}}</p>
    <p>The code expires in {{.ExpiresMinutes}} minutes. If you did not request it, you can ignore this message.</p>
  </body>
</html>`))

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #1f2933;">
    <h2>Welcome aboard, {{.Username}}!</h2>
    <p>Your Car Renthol account is ready. Sign in to browse vehicles and manage your bookings.</p>
  </body>
</html>`))

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #1f2933;">
    <h2>Password reset requested</h2>
    <p>Hi {{.Username}},</p>
    <p>Click the link below to choose a new password. The link expires in {{.ExpiresMinutes}} minutes.</p>
    <p><a href="{{.ResetURL}}">Reset password</a></p>
    <p>If you did not request this, no action is needed.</p>
  </body>
</html>`))

// RenderOTP produces the verification code message body.
func RenderOTP(username, code string, expiresMinutes int) (string, error) {
	return render(otpTemplate, map[string]any{
		"Username":       username,
		"Code":           code,
		"ExpiresMinutes": expiresMinutes,
	})
}

// RenderWelcome produces the account activation message body.
func RenderWelcome(username string) (string, error) {
	return render(welcomeTemplate, map[string]any{
		"Username": username,
	})
}

// RenderReset produces the password reset message body.
func RenderReset(username, resetURL string, expiresMinutes int) (string, error) {
	return render(resetTemplate, map[string]any{
		"Username":       username,
		"ResetURL":       template.URL(resetURL),
		"ExpiresMinutes": expiresMinutes,
	})
}

func render(tpl *template.Template, data map[string]any) (string, error) {
	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", tpl.Name(), err)
	}
	return sb.String(), nil
}
