package dispensing

import (
	"context"
	"strconv"
	"time"

	"github.com/erp/dispensing/internal/domain/dispensing"
	"go.uber.org/zap"
)

// PrivilegeConfig configures privilege resolution
type PrivilegeConfig struct {
	SuperRole    string
	Threshold    int
	AccessModule string
	CacheTTL     time.Duration
}

// PrivilegeResolver decides whether an operator may override excess on an order
type PrivilegeResolver struct {
	backend Backend
	cache   PrivilegeCache
	cfg     PrivilegeConfig
	logger  *zap.Logger
}

// NewPrivilegeResolver creates a resolver; cache may be nil
func NewPrivilegeResolver(backend Backend, cache PrivilegeCache, cfg PrivilegeConfig, logger *zap.Logger) *PrivilegeResolver {
	if cfg.SuperRole == "" {
		cfg.SuperRole = dispensing.DefaultSuperRole
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = dispensing.DefaultPrivilegeThreshold
	}
	return &PrivilegeResolver{backend: backend, cache: cache, cfg: cfg, logger: logger}
}

// Resolve returns the privilege of op for orderID.
// An access-level fetch failure resolves to Unprivileged and is not cached.
func (r *PrivilegeResolver) Resolve(ctx context.Context, op dispensing.Operator, orderID string) dispensing.Privilege {
	key := privilegeCacheKey(op.ID, orderID)

	if r.cache != nil {
		snap, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn("privilege cache read failed", zap.String("key", key), zap.Error(err))
		} else if snap != nil {
			return snap.Privilege(r.cfg.SuperRole, r.cfg.Threshold)
		}
	}

	level, err := r.backend.GetModuleAccessLevel(ctx, r.cfg.AccessModule)
	if err != nil {
		r.logger.Warn("access level fetch failed, operator treated as unprivileged",
			zap.String("operator_id", op.ID),
			zap.String("module", r.cfg.AccessModule),
			zap.Error(err))
		return dispensing.Unprivileged{}
	}

	operatorID, _ := strconv.ParseInt(op.ID, 10, 64)
	snap := &dispensing.PrivilegeSnapshot{
		OperatorID:  operatorID,
		Roles:       append([]string(nil), op.Roles...),
		AccessLevel: level,
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, key, snap, r.cfg.CacheTTL); err != nil {
			r.logger.Warn("privilege cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return snap.Privilege(r.cfg.SuperRole, r.cfg.Threshold)
}

func privilegeCacheKey(operatorID, orderID string) string {
	return operatorID + ":" + orderID
}
