/*
 * Copyright (c) 2022. TxnLab Inc.
 * All Rights reserved.
 */
package misc

import (
	"os"
	"strconv"
	"sync"
)

var (
	secretsMu  sync.RWMutex
	secretsMap = map[string]string{}
)

// SetSecret registers a secret which isn't available via the environment (loaded from a
// secrets manager for eg).  Environment values still take precedence.
func SetSecret(key, value string) {
	secretsMu.Lock()
	defer secretsMu.Unlock()
	secretsMap[key] = value
}

func GetSecret(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	secretsMu.RLock()
	defer secretsMu.RUnlock()
	return secretsMap[key]
}

// MaskSecret returns a loggable form of a secret, showing only its length.
func MaskSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	return "(length:" + strconv.Itoa(len(value)) + ")"
}
