package etcdclient

import (
	"strings"

	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

// Credentials of the etcd cluster used as the coordination store.
type Credentials struct {
	Endpoint  string `configKey:"endpoint" configUsage:"etcd endpoint." validate:"required"`
	Namespace string `configKey:"namespace" configUsage:"etcd namespace prefix, all keys are stored under it." validate:"required"`
	Username  string `configKey:"username" configUsage:"etcd username."`
	Password  string `configKey:"password" configUsage:"etcd password." sensitive:"true"`
}

func (c *Credentials) Normalize() {
	c.Namespace = strings.Trim(c.Namespace, " /") + "/"
}

func (c *Credentials) Validate() error {
	errs := errors.NewMultiError()
	if c.Endpoint == "" {
		errs.Append(errors.New("etcd endpoint is not set"))
	}
	if c.Namespace == "/" || c.Namespace == "" {
		errs.Append(errors.New("etcd namespace is not set"))
	}
	return errs.ErrorOrNil()
}
