package middleware

import (
	"crypto/subtle"
	"fmt"

	"github.com/JeroniMan/solana-indexer/api"
	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var ErrUnauthorized = fmt.Errorf("invalid username or password")

// Authorization enforces basic auth when api.basicAuth.username is set and
// lets every request through otherwise.
func Authorization(c *gin.Context) {
	creds := config.Cfg.API.BasicAuth
	if creds.Username == "" {
		c.Next()
		return
	}
	username, password, ok := c.Request.BasicAuth()
	if !ok || !validateCredentials(username, password, creds) {
		log.Warn().Str("path", c.Request.URL.Path).Str("ip", c.ClientIP()).Msg(ErrUnauthorized.Error())
		api.UnauthorizedErrorHandler(c, ErrUnauthorized)
		c.Abort()
		return
	}
	c.Next()
}

func validateCredentials(username, password string, creds config.BasicAuthConfig) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(creds.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(creds.Password)) == 1
	return userOK && passOK
}
