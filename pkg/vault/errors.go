package vault

import "errors"

var (
	ErrNotFound          = errors.New("vault: key not found")
	ErrExpired           = errors.New("vault: key expired")
	ErrBiometricRequired = errors.New("vault: biometric authentication required")
	ErrNotExportable     = errors.New("vault: entry is not exportable")
)
