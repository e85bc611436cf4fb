package service

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/models"
)

var (
	objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
	numericPattern  = regexp.MustCompile(`^[0-9]+$`)
)

// IdentityResolver routes an identity to its store. The source tag set at
// authentication wins; key shape is only a fallback and never probes a store.
type IdentityResolver struct {
	logger *zap.Logger
}

func NewIdentityResolver(logger *zap.Logger) *IdentityResolver {
	return &IdentityResolver{logger: logger.Named("identity")}
}

func (r *IdentityResolver) Resolve(id models.Identity) (models.ResolvedIdentity, error) {
	key := strings.TrimSpace(id.Key)
	if key == "" {
		return models.ResolvedIdentity{}, ErrInvalidIdentity
	}

	store := id.Source
	if !store.Valid() {
		store = sourceFromShape(key)
		r.logger.Warn("identity source tag missing or invalid, routing by key shape",
			zap.String("source_tag", string(id.Source)),
			zap.String("routed_to", string(store)),
		)
	}

	if objectIDPattern.MatchString(key) {
		key = strings.ToLower(key)
	}

	return models.ResolvedIdentity{
		Store: store,
		Key:   key,
		Email: strings.TrimSpace(id.Email),
		Name:  strings.TrimSpace(id.Name),
	}, nil
}

// Document ids are 24 hex chars; the legacy SQL store used numeric ids.
func sourceFromShape(key string) models.IdentitySource {
	switch {
	case objectIDPattern.MatchString(key):
		return models.SourcePrimary
	case numericPattern.MatchString(key):
		return models.SourceLegacy
	default:
		return models.SourcePrimary
	}
}
