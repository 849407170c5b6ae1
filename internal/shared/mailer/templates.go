package mailer

import (
	"fmt"
	"html"
	"strings"
)

// VerificationCode 注册验证码邮件
func VerificationCode(to, fullName, code string) Message {
	return Message{
		To:      to,
		Subject: "Verify your email",
		Text:    fmt.Sprintf("Hello %s,\n\nYour verification code is %s. It expires in 15 minutes.\n", fullName, code),
		HTML: fmt.Sprintf("<p>Hello %s,</p><p>Your verification code is <strong>%s</strong>. It expires in 15 minutes.</p>",
			html.EscapeString(fullName), html.EscapeString(code)),
	}
}

// Invitation 协作者邀请邮件
func Invitation(to, name, inviter, link string) Message {
	greeting := "Hello"
	if name != "" {
		greeting += " " + name
	}
	return Message{
		To:      to,
		Subject: "You have been invited to collaborate",
		Text:    fmt.Sprintf("%s,\n\n%s invited you to join as an associate.\nAccept or reject the invitation here: %s\n", greeting, inviter, link),
		HTML: fmt.Sprintf(`<p>%s,</p><p>%s invited you to join as an associate.</p><p><a href="%s">Respond to the invitation</a></p>`,
			html.EscapeString(greeting), html.EscapeString(inviter), html.EscapeString(link)),
	}
}

// PasswordReset 重置密码邮件
func PasswordReset(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Reset your password",
		Text:    fmt.Sprintf("Use the link below to reset your password. It expires in one hour.\n%s\n", link),
		HTML: fmt.Sprintf(`<p>Use the link below to reset your password. It expires in one hour.</p><p><a href="%s">Reset password</a></p>`,
			html.EscapeString(link)),
	}
}

// ContractShared 合同分享通知
func ContractShared(to, name, contractName, sharedBy string) Message {
	who := strings.TrimSpace(name)
	if who == "" {
		who = to
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Contract shared: %s", contractName),
		Text:    fmt.Sprintf("Hello %s,\n\n%s shared the contract %q with you.\n", who, sharedBy, contractName),
		HTML: fmt.Sprintf("<p>Hello %s,</p><p>%s shared the contract <strong>%s</strong> with you.</p>",
			html.EscapeString(who), html.EscapeString(sharedBy), html.EscapeString(contractName)),
	}
}
