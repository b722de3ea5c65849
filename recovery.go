package authkeep

import (
	"crypto/rand"
	"crypto/sha256"
	"strings"
)

// Alphabet excludes 0/O, 1/I and L so codes survive being read aloud or
// transcribed by hand.
const recoveryAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newRecoveryCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = recoveryAlphabet[int(b)%len(recoveryAlphabet)]
	}
	return string(out), nil
}

// newRecoveryCodes mints a batch of distinct codes. Collisions within a
// batch are astronomically unlikely but retried anyway.
func newRecoveryCodes(count, length int) ([]string, error) {
	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for len(codes) < count {
		code, err := newRecoveryCode(length)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// canonicalizeRecoveryCode normalizes user input: case-folds and strips the
// separators people type when copying a grouped code.
func canonicalizeRecoveryCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	code = strings.ReplaceAll(code, " ", "")
	return code
}

// recoveryCodeHash derives the stored digest for a code. The user ID acts
// as salt so identical codes held by different users never share a hash.
func recoveryCodeHash(userID, code string) [32]byte {
	return sha256.Sum256([]byte(userID + ":" + canonicalizeRecoveryCode(code)))
}
