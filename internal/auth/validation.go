package auth

import (
	"net/mail"
	"strings"
	"unicode"
)

// passwordSpecialChars はパスワードに要求する特殊文字の集合。
const passwordSpecialChars = "@$!%*?&"

// validateRegister は登録リクエストのフィールドを検証する。
// 違反があった場合はフィールド名をキーとするエラーマップを返す。
func validateRegister(email, password string) map[string][]string {
	fieldErrors := make(map[string][]string)

	if msgs := validateEmail(email); len(msgs) > 0 {
		fieldErrors["email"] = msgs
	}
	if msgs := validatePassword(password); len(msgs) > 0 {
		fieldErrors["password"] = msgs
	}

	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}

// validateEmail はメールアドレスの形式を検証する。
func validateEmail(email string) []string {
	if email == "" {
		return []string{"メールアドレスは必須です"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return []string{"メールアドレスの形式が不正です"}
	}
	return nil
}

// validatePassword はパスワードポリシーを検証する。
// 8文字以上、大文字・小文字・数字・特殊文字を各1つ以上含むこと。
func validatePassword(password string) []string {
	if password == "" {
		return []string{"パスワードは必須です"}
	}

	var msgs []string
	if len(password) < 8 {
		msgs = append(msgs, "パスワードは8文字以上にしてください")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSpecialChars, r):
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		msgs = append(msgs, "パスワードには大文字・小文字・数字・特殊文字を各1つ以上含めてください")
	}

	return msgs
}
