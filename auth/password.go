package auth

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// PasswordService bcrypt 哈希和密码策略
type PasswordService struct {
	policy     PasswordPolicy
	bcryptCost int
}

func NewPasswordService(policy PasswordPolicy, bcryptCost int) *PasswordService {
	return &PasswordService{policy: policy, bcryptCost: bcryptCost}
}

func (s *PasswordService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *PasswordService) CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword 按策略检查，返回第一个不满足的规则
func (s *PasswordService) ValidatePassword(password string) error {
	if len(password) < s.policy.MinLength {
		return ErrPasswordTooShort.WithData("min_length", s.policy.MinLength)
	}
	if s.policy.MaxLength > 0 && len(password) > s.policy.MaxLength {
		return ErrPasswordTooLong.WithData("max_length", s.policy.MaxLength)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSpecial = true
		}
	}

	switch {
	case s.policy.RequireUppercase && !hasUpper:
		return ErrPasswordTooWeak.WithMsg("password must contain an uppercase letter")
	case s.policy.RequireLowercase && !hasLower:
		return ErrPasswordTooWeak.WithMsg("password must contain a lowercase letter")
	case s.policy.RequireDigit && !hasDigit:
		return ErrPasswordTooWeak.WithMsg("password must contain a digit")
	case s.policy.RequireSpecialChar && !hasSpecial:
		return ErrPasswordTooWeak.WithMsg("password must contain a special character")
	}

	lower := strings.ToLower(password)
	for _, weak := range s.policy.Blacklist {
		if weak != "" && strings.Contains(lower, strings.ToLower(weak)) {
			return ErrPasswordInBlacklist.WithData("word", weak)
		}
	}
	return nil
}

func (s *PasswordService) GetPolicy() PasswordPolicy {
	return s.policy
}
