package mailer

import "fmt"

func VerifyEmail(to, url string) Message {
	return Message{
		To:      to,
		Subject: "Verify your email address",
		Text:    fmt.Sprintf("Click the link below to verify your email address:\n%s", url),
		HTML: fmt.Sprintf(`<p>Click the link below to verify your email address.</p>`+
			`<p><a href="%s">Verify email</a></p>`, url),
	}
}

func PasswordReset(to, url string) Message {
	return Message{
		To:      to,
		Subject: "Password reset request",
		Text:    fmt.Sprintf("You requested a password reset. Use the link below within the next hour:\n%s", url),
		HTML: fmt.Sprintf(`<p>You requested a password reset. The link expires in one hour.</p>`+
			`<p><a href="%s">Reset password</a></p>`, url),
	}
}
