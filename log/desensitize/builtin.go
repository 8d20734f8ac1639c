package desensitize

const mask = "******"

var (
	AccessTokenRule  = MustFieldRule("access_token", "access_token", mask)
	RefreshTokenRule = MustFieldRule("refresh_token", "refresh_token", mask)
	PasswordRule     = MustFieldRule("password", "password", mask)
	APIKeyRule       = MustFieldRule("apikey", "apikey", mask)

	// BearerRule Authorization 头中的令牌
	BearerRule = MustContentRule("bearer", `Bearer [A-Za-z0-9\-_=]+\.[A-Za-z0-9\-_=]+\.?[A-Za-z0-9\-_.+/=]*`, "Bearer "+mask)

	// EmailRule user@example.com -> u***@example.com
	EmailRule = MustContentRule("email", `\b([A-Za-z0-9])[A-Za-z0-9._%+-]*@([A-Za-z0-9.-]+\.[A-Za-z]{2,})\b`, "$1***@$2")

	// PhoneRule 智利手机号 +56 9 1234 5678 -> +56 9 **** 5678
	PhoneRule = MustContentRule("phone", `(\+?56\s?9)\s?\d{4}\s?(\d{4})\b`, "$1 **** $2")

	// RUTRule 智利税号 12.345.678-9 -> **.***.678-9
	RUTRule = MustContentRule("rut", `\b\d{1,2}\.\d{3}\.(\d{3}-[\dkK])\b`, "**.***.$1")
)

// Session 会话日志默认使用的规则
func Session() []Rule {
	return []Rule{AccessTokenRule, RefreshTokenRule, PasswordRule, APIKeyRule, BearerRule}
}

// PII 个人信息规则
func PII() []Rule {
	return []Rule{EmailRule, PhoneRule, RUTRule}
}
