package authn

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/surveykit/hooks/internal/middleware"
	"github.com/surveykit/hooks/internal/models"
	"github.com/surveykit/hooks/internal/pkg/response"
	sessionpkg "github.com/surveykit/hooks/internal/pkg/session"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const rpDisplayName = "SurveyKit Hooks"

// Handler serves the passkey (WebAuthn) endpoints. The instance is
// single-owner, so every credential belongs to the operator account and
// authentication needs no username step.
type Handler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewHandler(db *gorm.DB, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{db: db, log: logger.Named("authn")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/passkey")
	g.POST("/register", authMW, h.registerOptions)
	g.POST("/register/verify", authMW, h.registerVerify)
	g.POST("/authentication", h.authenticationOptions)
	g.POST("/authentication/verify", h.authenticationVerify)
	g.GET("/items", authMW, h.listItems)
	g.DELETE("/items/:id", authMW, h.deleteItem)
}

func (h *Handler) registerOptions(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		response.Unauthorized(c)
		return
	}

	pk, err := h.loadOwner()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if pk == nil || pk.user.ID != userID {
		response.NotFoundMsg(c, "operator account not found")
		return
	}

	wa, err := relyingParty(c)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(pk.creds))
	for _, cred := range pk.creds {
		exclusions = append(exclusions, cred.Descriptor())
	}

	options, sessionData, err := wa.BeginRegistration(pk,
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			ResidentKey:             protocol.ResidentKeyRequirementPreferred,
			UserVerification:        protocol.VerificationPreferred,
		}),
		webauthn.WithExclusions(exclusions),
	)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	ceremonies.put("registration:"+userID, sessionData)
	response.OK(c, options.Response)
}

func (h *Handler) registerVerify(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		response.Unauthorized(c)
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	// The client sends the credential plus a display name in one body.
	var meta struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(raw, &meta)

	sessionData := ceremonies.get("registration:" + userID)
	if sessionData == nil {
		response.BadRequest(c, "no registration ceremony in progress")
		return
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(raw))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	pk, err := h.loadOwner()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if pk == nil {
		response.NotFoundMsg(c, "operator account not found")
		return
	}

	wa, err := relyingParty(c)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	cred, err := wa.CreateCredential(pk, *sessionData, parsed)
	if err != nil {
		response.BadRequest(c, "attestation rejected: "+err.Error())
		return
	}

	name := strings.TrimSpace(meta.Name)
	if name == "" {
		name = "Passkey"
	}
	name = h.ensureUniqueName(name)

	item := models.AuthnModel{
		Name:                 name,
		CredentialID:         cred.ID,
		CredentialPublicKey:  cred.PublicKey,
		Counter:              cred.Authenticator.SignCount,
		CredentialDeviceType: deviceType(cred.Flags.BackupEligible),
		CredentialBackedUp:   cred.Flags.BackupState,
	}
	if err := h.db.Create(&item).Error; err != nil {
		response.InternalError(c, err)
		return
	}

	ceremonies.del("registration:" + userID)
	h.log.Info("passkey registered", zap.String("name", name))
	response.OK(c, gin.H{"verified": true})
}

func (h *Handler) authenticationOptions(c *gin.Context) {
	pk, err := h.loadOwner()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if pk == nil || len(pk.creds) == 0 {
		response.BadRequest(c, "no passkey registered")
		return
	}

	wa, err := relyingParty(c)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	options, sessionData, err := wa.BeginLogin(pk)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	ceremonies.put("authentication", sessionData)
	response.OK(c, options.Response)
}

func (h *Handler) authenticationVerify(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	// "test" lets the admin panel verify a passkey without signing in.
	var meta struct {
		Test bool `json:"test"`
	}
	_ = json.Unmarshal(raw, &meta)

	sessionData := ceremonies.get("authentication")
	if sessionData == nil {
		response.BadRequest(c, "no authentication ceremony in progress")
		return
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(raw))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	pk, err := h.loadOwner()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if pk == nil {
		response.BadRequest(c, "no passkey registered")
		return
	}

	wa, err := relyingParty(c)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	cred, err := wa.ValidateLogin(pk, *sessionData, parsed)
	if err != nil {
		response.BadRequest(c, "assertion rejected: "+err.Error())
		return
	}
	if cred.Authenticator.CloneWarning {
		h.log.Warn("passkey sign counter regressed, credential may be cloned",
			zap.String("credential", base64.RawURLEncoding.EncodeToString(cred.ID)))
	}

	_ = h.db.Model(&models.AuthnModel{}).
		Where("credential_id = ?", cred.ID).
		Updates(map[string]interface{}{
			"counter":              cred.Authenticator.SignCount,
			"credential_backed_up": cred.Flags.BackupState,
		}).Error

	res := gin.H{"verified": true}
	if !meta.Test {
		token, _, err := sessionpkg.Issue(h.db, pk.user.ID, c.ClientIP(), c.Request.UserAgent(), sessionpkg.DefaultTTL)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		res["token"] = token
	}

	ceremonies.del("authentication")
	response.OK(c, res)
}

func (h *Handler) listItems(c *gin.Context) {
	var items []models.AuthnModel
	if err := h.db.Order("created_at DESC").Find(&items).Error; err != nil {
		response.InternalError(c, err)
		return
	}

	out := make([]gin.H, 0, len(items))
	for _, item := range items {
		out = append(out, gin.H{
			"id":                   item.ID,
			"name":                 item.Name,
			"credentialID":         base64.RawURLEncoding.EncodeToString(item.CredentialID),
			"counter":              item.Counter,
			"credentialDeviceType": item.CredentialDeviceType,
			"credentialBackedUp":   item.CredentialBackedUp,
			"created":              item.CreatedAt,
		})
	}
	response.OK(c, gin.H{"data": out})
}

func (h *Handler) deleteItem(c *gin.Context) {
	if err := h.db.Delete(&models.AuthnModel{}, "id = ?", c.Param("id")).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) ensureUniqueName(base string) string {
	name := base
	for i := 1; i < 1000; i++ {
		var count int64
		_ = h.db.Model(&models.AuthnModel{}).Where("name = ?", name).Count(&count).Error
		if count == 0 {
			return name
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
	return fmt.Sprintf("%s-%d", base, time.Now().UnixMilli())
}

func (h *Handler) loadOwner() (*passkeyUser, error) {
	var u models.UserModel
	if err := h.db.Select("id, username, name").First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var items []models.AuthnModel
	if err := h.db.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	creds := make([]webauthn.Credential, 0, len(items))
	for _, item := range items {
		creds = append(creds, webauthn.Credential{
			ID:        item.CredentialID,
			PublicKey: item.CredentialPublicKey,
			Flags: webauthn.CredentialFlags{
				BackupEligible: item.CredentialDeviceType == "multiDevice",
				BackupState:    item.CredentialBackedUp,
			},
			Authenticator: webauthn.Authenticator{SignCount: item.Counter},
		})
	}
	return &passkeyUser{user: &u, creds: creds}, nil
}

// passkeyUser adapts the operator account to the webauthn.User interface.
type passkeyUser struct {
	user  *models.UserModel
	creds []webauthn.Credential
}

func (u *passkeyUser) WebAuthnID() []byte { return []byte(u.user.ID) }

func (u *passkeyUser) WebAuthnName() string { return u.user.Username }

func (u *passkeyUser) WebAuthnDisplayName() string {
	if strings.TrimSpace(u.user.Name) != "" {
		return u.user.Name
	}
	return u.user.Username
}

func (u *passkeyUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

// relyingParty builds a WebAuthn relying party for the request's origin.
// The admin panel may be served from any host, so the RP ID is derived
// per request instead of configured.
func relyingParty(c *gin.Context) (*webauthn.WebAuthn, error) {
	rpID, origin := deriveRelyingParty(c)
	return webauthn.New(&webauthn.Config{
		RPDisplayName: rpDisplayName,
		RPID:          rpID,
		RPOrigins:     []string{origin},
	})
}

func deriveRelyingParty(c *gin.Context) (rpID, origin string) {
	if o := c.GetHeader("Origin"); o != "" {
		if u, err := url.Parse(o); err == nil && u.Hostname() != "" {
			return u.Hostname(), o
		}
	}

	host := c.Request.Host
	if host == "" {
		host = "localhost"
	}
	hostname := host
	if i := strings.IndexByte(hostname, ':'); i >= 0 {
		hostname = hostname[:i]
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return hostname, scheme + "://" + host
}

func deviceType(backupEligible bool) string {
	if backupEligible {
		return "multiDevice"
	}
	return "singleDevice"
}

type ceremonyStore struct {
	mu sync.Mutex
	m  map[string]*webauthn.SessionData
}

func (s *ceremonyStore) put(key string, sd *webauthn.SessionData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = sd
}

func (s *ceremonyStore) get(key string) *webauthn.SessionData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key]
}

func (s *ceremonyStore) del(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

var ceremonies = &ceremonyStore{m: map[string]*webauthn.SessionData{}}
