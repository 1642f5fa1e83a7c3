// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// VerificationEmailData holds data for the verification email.
type VerificationEmailData struct {
	SiteName  string
	Code      string
	MagicLink string
	ExpiresIn string // e.g. "10 minutes"
}

// BuildVerificationEmail creates a verification email with text and HTML
// bodies. The caller sets To.
func BuildVerificationEmail(data VerificationEmailData) Email {
	return Email{
		Subject:  fmt.Sprintf("Your %s verification code", data.SiteName),
		TextBody: buildVerificationText(data),
		HTMLBody: buildVerificationHTML(data),
	}
}

func buildVerificationText(data VerificationEmailData) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Your %s verification code is: %s\n\n", data.SiteName, data.Code)
	buf.WriteString("Or open this link to verify your email:\n")
	buf.WriteString(data.MagicLink + "\n\n")
	fmt.Fprintf(&buf, "This code expires in %s.\n\n", data.ExpiresIn)
	buf.WriteString("If you did not request this code, you can safely ignore this email.\n")
	return buf.String()
}

func buildVerificationHTML(data VerificationEmailData) string {
	tmpl := template.Must(template.New("verification").Parse(verificationHTMLTemplate))
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}

const verificationHTMLTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Verification Code</title></head>
<body style="margin:0;padding:0;font-family:-apple-system,'Segoe UI',Roboto,Arial,sans-serif;background-color:#f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
    <tr><td align="center" style="padding:40px 20px;">
      <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width:480px;background-color:#ffffff;border-radius:8px;">
        <tr><td style="padding:32px;text-align:center;border-bottom:1px solid #e5e7eb;">
          <h1 style="margin:0;font-size:24px;color:#0f766e;">{{.SiteName}}</h1>
        </td></tr>
        <tr><td style="padding:32px;">
          <p style="margin:0 0 24px;font-size:16px;color:#374151;">Your verification code is:</p>
          <div style="background-color:#f3f4f6;border-radius:8px;padding:24px;text-align:center;margin-bottom:24px;">
            <span style="font-size:32px;font-weight:700;letter-spacing:8px;color:#1f2937;font-family:'Courier New',monospace;">{{.Code}}</span>
          </div>
          <p style="margin:0 0 24px;font-size:14px;color:#6b7280;text-align:center;">Or click the button below:</p>
          <table role="presentation" width="100%"><tr><td align="center">
            <a href="{{.MagicLink}}" style="display:inline-block;padding:14px 32px;background-color:#0f766e;color:#ffffff;text-decoration:none;font-size:16px;border-radius:6px;">Verify Email</a>
          </td></tr></table>
          <p style="margin:24px 0 0;font-size:13px;color:#9ca3af;text-align:center;">This code expires in {{.ExpiresIn}}.</p>
        </td></tr>
        <tr><td style="padding:24px 32px;background-color:#f9fafb;border-top:1px solid #e5e7eb;">
          <p style="margin:0;font-size:12px;color:#9ca3af;text-align:center;">If you did not request this code, you can safely ignore this email.</p>
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`

// PasswordResetEmailData holds data for the password reset email.
type PasswordResetEmailData struct {
	SiteName  string
	FullName  string
	ResetLink string
	ExpiresIn string // e.g. "1 hour"
}

// BuildPasswordResetEmail creates the email carrying a password reset
// link. The caller sets To.
func BuildPasswordResetEmail(data PasswordResetEmailData) Email {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Hi %s,\n\n", data.FullName)
	fmt.Fprintf(&buf, "We received a request to reset your %s password. Open this link to choose a new one:\n\n", data.SiteName)
	buf.WriteString(data.ResetLink + "\n\n")
	fmt.Fprintf(&buf, "The link expires in %s.\n\n", data.ExpiresIn)
	buf.WriteString("If you did not request a reset, you can safely ignore this email. Your password will remain unchanged.\n")

	return Email{
		Subject:  fmt.Sprintf("Reset your %s password", data.SiteName),
		TextBody: buf.String(),
		HTMLBody: buildPasswordResetHTML(data),
	}
}

func buildPasswordResetHTML(data PasswordResetEmailData) string {
	tmpl := template.Must(template.New("reset").Parse(passwordResetHTMLTemplate))
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}

const passwordResetHTMLTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Password Reset</title></head>
<body style="margin:0;padding:0;font-family:-apple-system,'Segoe UI',Roboto,Arial,sans-serif;background-color:#f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
    <tr><td align="center" style="padding:40px 20px;">
      <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width:480px;background-color:#ffffff;border-radius:8px;">
        <tr><td style="padding:32px;text-align:center;border-bottom:1px solid #e5e7eb;">
          <h1 style="margin:0;font-size:24px;color:#0f766e;">{{.SiteName}}</h1>
        </td></tr>
        <tr><td style="padding:32px;">
          <p style="margin:0 0 24px;font-size:16px;color:#374151;">Hi <strong>{{.FullName}}</strong>, we received a request to reset your password. Click the button below to choose a new one.</p>
          <table role="presentation" width="100%"><tr><td align="center">
            <a href="{{.ResetLink}}" style="display:inline-block;padding:14px 32px;background-color:#0f766e;color:#ffffff;text-decoration:none;font-size:16px;border-radius:6px;">Reset Password</a>
          </td></tr></table>
          <p style="margin:24px 0 0;font-size:13px;color:#9ca3af;text-align:center;">The link expires in {{.ExpiresIn}}.</p>
        </td></tr>
        <tr><td style="padding:24px 32px;background-color:#f9fafb;border-top:1px solid #e5e7eb;">
          <p style="margin:0;font-size:12px;color:#9ca3af;text-align:center;">If you did not request a password reset, you can safely ignore this email. Your password will remain unchanged.</p>
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`

// SessionAnnouncementData holds data for the session announcement email.
type SessionAnnouncementData struct {
	SiteName    string
	Title       string
	StartAt     time.Time
	MeetingLink string
}

// BuildSessionAnnouncement creates the email sent to registrants when a
// session opens or its meeting details change.
func BuildSessionAnnouncement(data SessionAnnouncementData) Email {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "A %s conversation session is coming up.\n\n", data.SiteName)
	fmt.Fprintf(&buf, "Session: %s\n", data.Title)
	fmt.Fprintf(&buf, "Starts:  %s\n", data.StartAt.Format("Mon, 02 Jan 2006 15:04 MST"))
	if data.MeetingLink != "" {
		fmt.Fprintf(&buf, "Join:    %s\n", data.MeetingLink)
	}
	buf.WriteString("\nSee you there!\n")

	return Email{
		Subject:  fmt.Sprintf("%s: %s", data.SiteName, data.Title),
		TextBody: buf.String(),
	}
}
