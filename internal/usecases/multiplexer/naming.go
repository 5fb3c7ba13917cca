package multiplexer

import (
	"strings"

	"github.com/pkg/errors"

	mcperrors "github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared/errors"
)

// Separator joins a namespace and a peer's own tool name
const Separator = "_"

var (
	// ErrInvalidNamespace is returned for empty namespaces and namespaces
	// containing Separator
	ErrInvalidNamespace = errors.New("invalid namespace")

	// ErrInvalidToolName is returned when a tool name carries no namespace
	ErrInvalidToolName = mcperrors.NewInvalidInputError("tool name has no namespace prefix", nil)
)

// NamespacedName prefixes tool with namespace
func NamespacedName(namespace, tool string) string {
	return namespace + Separator + tool
}

// SplitName unmaps a namespaced tool name on the first separator. Tool names
// may themselves contain the separator.
func SplitName(name string) (namespace, tool string, ok bool) {
	namespace, tool, ok = strings.Cut(name, Separator)
	if !ok || namespace == "" || tool == "" {
		return "", "", false
	}
	return namespace, tool, true
}

// ValidateNamespace checks that namespace can be unmapped unambiguously
func ValidateNamespace(namespace string) error {
	if namespace == "" {
		return errors.Wrap(ErrInvalidNamespace, "namespace is empty")
	}
	if strings.Contains(namespace, Separator) {
		return errors.Wrapf(ErrInvalidNamespace, "%q contains %q", namespace, Separator)
	}
	return nil
}
