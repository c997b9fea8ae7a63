package core

import "strings"

// keyComponentSeparators are reserved by the storage key layout and the
// composite index document ID. Tenant, platform and object type values
// must not contain them. Original IDs may contain anything because they
// always occupy the final position of a composite key.
const keyComponentSeparators = ":/"

func validKeyComponent(s string) bool {
	return !strings.ContainsAny(s, keyComponentSeparators)
}

// Validate checks that an ObjectKey is complete and uses no reserved
// characters in its scoping components.
func (k ObjectKey) Validate() error {
	if k.TenantID == "" {
		return ErrEmptyTenantID
	}
	if k.Platform == "" {
		return ErrEmptyPlatform
	}
	if k.ObjectType == "" {
		return ErrEmptyObjectType
	}
	if k.OriginalID == "" {
		return ErrEmptyOriginalID
	}
	if !validKeyComponent(k.TenantID) || !validKeyComponent(k.Platform) || !validKeyComponent(k.ObjectType) {
		return ErrInvalidKeyCharacter
	}
	return nil
}

// Validate checks that an IntegratedObject is well-formed enough to be
// stored: a valid key and non-empty content.
func (o *IntegratedObject) Validate() error {
	if err := o.Key.Validate(); err != nil {
		return err
	}
	if o.Content.Title == "" && o.Content.Body == "" {
		return ErrEmptyContent
	}
	return nil
}

// ValidateScope checks a bare (tenant, platform) pair, used by
// operations that are scoped to a tenant rather than to an object.
func ValidateScope(tenantID, platform string) error {
	if tenantID == "" {
		return ErrEmptyTenantID
	}
	if platform == "" {
		return ErrEmptyPlatform
	}
	if !validKeyComponent(tenantID) || !validKeyComponent(platform) {
		return ErrInvalidKeyCharacter
	}
	return nil
}
