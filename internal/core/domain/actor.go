package domain

import (
	"sort"
	"time"
)

// Built-in actor names.
const (
	SystemActor = "system"
	CoreActor   = "core"
)

// InfoMethod is exposed by every actor and returns its method schema.
const InfoMethod = "info"

// MethodInfo describes one callable method of an actor.
type MethodInfo struct {
	Args []string `json:"args"`
	Doc  string   `json:"doc"`
}

// ActorDescriptor is the schema the client uses to build proxies.
type ActorDescriptor struct {
	Name    string                `json:"name"`
	Methods map[string]MethodInfo `json:"methods"`
}

// MethodNames returns the method names in sorted order.
func (d ActorDescriptor) MethodNames() []string {
	names := make([]string, 0, len(d.Methods))
	for name := range d.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasMethod reports whether the descriptor declares the method.
func (d ActorDescriptor) HasMethod(name string) bool {
	_, ok := d.Methods[name]
	return ok
}

// AuthToken is the payload of the AUTH command.
//
// EncryptedData is the hex encoding of a signed timestamp sealed with the
// key shared between the sender and the recipient.
type AuthToken struct {
	PeerID        int64  `json:"threebot_id"`
	EncryptedData string `json:"encrypted_data"`
}

// Registration is a persisted register_actor call.
type Registration struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	RegisteredAt time.Time `json:"registered_at"`
}
