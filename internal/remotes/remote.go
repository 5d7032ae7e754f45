package remotes

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"strings"

	"github.com/openmined/rclonebox/internal/rclone"
	"github.com/openmined/rclonebox/internal/utils"
)

var ErrInvalidRemoteType = errors.New("invalid remote type")

var remoteTypeRe = regexp.MustCompile(`^[a-z0-9]+$`)

// Remote is one configured rclone backend. Config holds every option except
// the type.
type Remote struct {
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Config map[string]string `json:"config"`
}

func NewRemote(name, remoteType string, config map[string]string) (*Remote, error) {
	if err := rclone.ValidateRemoteName(name); err != nil {
		return nil, err
	}

	remoteType = strings.ToLower(strings.TrimSpace(remoteType))
	if !remoteTypeRe.MatchString(remoteType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRemoteType, remoteType)
	}

	cfg := maps.Clone(config)
	if cfg == nil {
		cfg = map[string]string{}
	}
	delete(cfg, "type")

	return &Remote{Name: name, Type: remoteType, Config: cfg}, nil
}

// fromDump builds a remote from one `config dump` section
func fromDump(name string, section map[string]string) (*Remote, error) {
	return NewRemote(name, section["type"], section)
}

func (r *Remote) Host() string {
	if h := r.Config["host"]; h != "" {
		return h
	}
	return r.Config["url"]
}

func (r *Remote) User() string {
	if u := r.Config["user"]; u != "" {
		return u
	}
	return r.Config["username"]
}

func (r *Remote) String() string {
	return fmt.Sprintf("%s (%s)", r.Name, r.Type)
}

// Equal compares remotes by name
func (r *Remote) Equal(other *Remote) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Name == other.Name
}

func (r *Remote) Clone() *Remote {
	return &Remote{Name: r.Name, Type: r.Type, Config: maps.Clone(r.Config)}
}

// Masked returns a copy whose credential options are replaced
func (r *Remote) Masked() *Remote {
	return &Remote{Name: r.Name, Type: r.Type, Config: utils.MaskOptions(r.Config)}
}
