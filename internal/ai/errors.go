package ai

import (
	"errors"
	"strings"
)

// ErrProviderRejected marks provider errors that will not resolve on retry
// (exhausted credit, rate limit, bad credentials).
var ErrProviderRejected = errors.New("language model provider rejected the request")

var fatalMarkers = []string{
	"credit balance",
	"rate limit",
	"quota exceeded",
	"billing",
	"invalid api key",
	"invalid x-api-key",
	"authentication",
	"unauthorized",
	"401",
	"403",
	"429",
}

func isProviderRejection(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range fatalMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func wrapProviderError(err error) error {
	if isProviderRejection(err) {
		return errors.Join(ErrProviderRejected, err)
	}
	return err
}
