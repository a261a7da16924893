package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hoangtran/auctionhub-backend/pkg/enums"
)

// ErrDecoderNotRegistered is returned by Decode when no decoder matches the
// event type and version. Consumers use it to tell "event we do not handle"
// apart from a genuine decode failure.
var ErrDecoderNotRegistered = errors.New("decoder not registered")

type decoderFunc func(payload json.RawMessage) (interface{}, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps (event type, payload version) pairs to decoders.
// Registering per version lets consumers keep decoding old payload shapes
// after producers move to a newer schema.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]decoderFunc
}

// NewDecoderRegistry builds an empty decoder registry.
func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]decoderFunc)}
}

// Register installs a decoder, replacing any previous one for the same key.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = decoder
}

// Decode runs the decoder registered for the event type and version.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error) {
	r.mtx.RLock()
	decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]
	r.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s@v%d", ErrDecoderNotRegistered, eventType, version)
	}
	return decoder(payload)
}
