package engine

import (
	"context"

	"reader-backend/internal/condition"
	"reader-backend/internal/metadata"
)

// URLResolver turns a page reference into an absolute URL.
type URLResolver interface {
	ResolveTarget(ctx context.Context, page int64) (string, error)
}

// CheckPermission reports whether the item may be shown. Without show
// conditions every item may.
func CheckPermission(ref configRef, cfg *metadata.ReaderConfig, item *Item) (bool, error) {
	if !cfg.HasShowConditions() {
		return true, nil
	}
	cond, err := condition.Compile(cfg.ShowConditions)
	if err != nil {
		return false, configError(ref, err, "show conditions")
	}
	return cond.Eval(item.Raw), nil
}

// ComputeRedirect returns the redirect target when the field-dependent
// redirect is enabled and its conditions match the item.
func ComputeRedirect(ctx context.Context, ref configRef, cfg *metadata.ReaderConfig, item *Item, urls URLResolver) (string, bool, error) {
	if !cfg.RedirectEnabled() {
		return "", false, nil
	}
	cond, err := condition.Compile(cfg.Redirect.Conditions)
	if err != nil {
		return "", false, configError(ref, err, "redirect conditions")
	}
	if !cond.Eval(item.Raw) {
		return "", false, nil
	}
	url, err := urls.ResolveTarget(ctx, cfg.Redirect.JumpTo)
	if err != nil {
		return "", false, configError(ref, err, "redirect target")
	}
	return url, true, nil
}
