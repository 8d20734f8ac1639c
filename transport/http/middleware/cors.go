package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type CorsConfig struct {
	// AllowOrigins 含 "*" 时放行任意来源
	AllowOrigins     []string `json:"allow_origins" mapstructure:"allow_origins" default:"http://localhost:5173"`
	AllowMethods     []string `json:"allow_methods" mapstructure:"allow_methods" default:"GET,POST,PATCH,OPTIONS"`
	AllowHeaders     []string `json:"allow_headers" mapstructure:"allow_headers" default:"Origin,Content-Type,Accept,Authorization"`
	AllowCredentials bool     `json:"allow_credentials" mapstructure:"allow_credentials"`
	ExposeHeaders    []string `json:"expose_headers" mapstructure:"expose_headers"`
	MaxAge           int      `json:"max_age" mapstructure:"max_age" default:"43200"`
}

func CorsWithConfig(config CorsConfig) gin.HandlerFunc {
	wildcard := slices.Contains(config.AllowOrigins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || !wildcard && !slices.Contains(config.AllowOrigins, origin) {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", strings.Join(config.AllowMethods, ","))
		h.Set("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ","))
		h.Set("Access-Control-Allow-Credentials", strconv.FormatBool(config.AllowCredentials))
		if len(config.ExposeHeaders) > 0 {
			h.Set("Access-Control-Expose-Headers", strings.Join(config.ExposeHeaders, ","))
		}
		h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
		h.Add("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
