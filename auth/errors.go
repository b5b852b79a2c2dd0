package auth

import (
	"net/http"

	"github.com/KOMKZ/go-yogan-bucket/errcode"
)

// ModuleCode auth 模块码
const ModuleCode = 38

var (
	ErrUnauthorized = errcode.Register(errcode.New(ModuleCode, 1, "auth", "error.auth.unauthorized",
		"authentication required", http.StatusUnauthorized))

	// ErrTooManyAttempts 失败次数过多，暂时不再校验密码
	ErrTooManyAttempts = errcode.Register(errcode.New(ModuleCode, 2, "auth", "error.auth.too_many_attempts",
		"too many failed login attempts, try again later", http.StatusTooManyRequests))

	ErrInvalidConfig = errcode.Register(errcode.New(ModuleCode, 3, "auth", "error.auth.invalid_config",
		"invalid admin auth config", http.StatusInternalServerError))

	// 密码策略
	ErrPasswordTooShort = errcode.Register(errcode.New(ModuleCode, 4, "auth", "error.auth.password_too_short",
		"password is too short", http.StatusBadRequest))
	ErrPasswordTooLong = errcode.Register(errcode.New(ModuleCode, 5, "auth", "error.auth.password_too_long",
		"password is too long", http.StatusBadRequest))
	ErrPasswordTooWeak = errcode.Register(errcode.New(ModuleCode, 6, "auth", "error.auth.password_too_weak",
		"password is too weak", http.StatusBadRequest))
	ErrPasswordInBlacklist = errcode.Register(errcode.New(ModuleCode, 7, "auth", "error.auth.password_blacklisted",
		"password contains a blacklisted word", http.StatusBadRequest))
)
