package connectivity

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Payload is what the provisioning screen encodes as a QR code.
type Payload struct {
	Version   string `json:"ver"`
	Name      string `json:"name"`
	POP       string `json:"pop"`
	Transport string `json:"transport"`
}

func (p Payload) String() string {
	dat, _ := json.Marshal(p)
	return string(dat)
}

type provisionRequest struct {
	SSID       string `json:"ssid" binding:"required"`
	Passphrase string `json:"passphrase"`
	POP        string `json:"pop" binding:"required"`
}

// provisioner serves the credential exchange used by the companion app.
type provisioner struct {
	payload Payload
	store   *CredentialStore
	onSaved func(Credentials)
	log     *zap.SugaredLogger
}

func (p *provisioner) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/provision", p.getPayload)
	router.POST("/provision", p.provision)
	return router
}

func (p *provisioner) getPayload(c *gin.Context) {
	c.JSON(http.StatusOK, p.payload)
}

func (p *provisioner) provision(c *gin.Context) {
	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.POP), []byte(p.payload.POP)) != 1 {
		p.log.Warnw("provisioning rejected", "err", ErrBadPOP)
		c.JSON(http.StatusForbidden, gin.H{"error": ErrBadPOP.Error()})
		return
	}

	creds := Credentials{SSID: req.SSID, Passphrase: req.Passphrase}
	if err := p.store.Save(creds); err != nil {
		p.log.Errorw("could not save credentials", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save credentials"})
		return
	}

	p.log.Infow("credentials received", "ssid", creds.SSID)
	c.JSON(http.StatusAccepted, gin.H{"status": "connecting"})
	p.onSaved(creds)
}
