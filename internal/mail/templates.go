package mail

import (
	"fmt"
	"html"
	"time"
)

// OTPMessage renders the verification email for code.
func OTPMessage(code string, ttl time.Duration) (subject, body string) {
	subject = "OTP for Email Verification"
	body = fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>NOAP email verification</h2>
    <p>Your one-time code is:</p>
    <div style="font-size: 28px; font-weight: bold; letter-spacing: 3px;">%s</div>
    <p>It expires in %d minutes.</p>
  </div>
</body>
</html>`, html.EscapeString(code), int(ttl.Minutes()))
	return subject, body
}

// PasswordResetMessage renders the reset email pointing at link.
func PasswordResetMessage(link string) (subject, body string) {
	subject = "Password Reset"
	body = fmt.Sprintf(`<p>Click the link to reset your password: <a href="%s">Reset Password</a></p>
<p>The link expires in 1 hour. If you did not request a reset, ignore this email.</p>`, html.EscapeString(link))
	return subject, body
}
