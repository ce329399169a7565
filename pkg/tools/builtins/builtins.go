package builtins

import (
	"github.com/rhuss/lokal/pkg/contextstore"
	"github.com/rhuss/lokal/pkg/retrieval"
	"github.com/rhuss/lokal/pkg/tools"
)

// Tool names.
const (
	ReadFile          = "read_file"
	SearchDocuments   = "search_documents"
	GetContext        = "get_context"
	GetSystemInfo     = "get_system_info"
	RetrieveDocuments = "retrieve_documents"
)

// Deps are the services the built-in tools operate on. A nil store leaves
// the tools that need it unregistered.
type Deps struct {
	Contexts  *contextstore.Store
	Documents *retrieval.Store

	// FileRoot restricts read_file to paths below it. Empty allows any path.
	FileRoot string

	// MaxFileSize caps read_file in bytes. Zero means DefaultMaxFileSize.
	MaxFileSize int64
}

// DefaultMaxFileSize is the read_file limit when none is configured.
const DefaultMaxFileSize = 1 << 20

// Register adds the built-in tools to reg.
func Register(reg *tools.Registry, deps Deps) {
	reg.Register(readFileTool(deps.FileRoot, deps.MaxFileSize))
	if deps.Contexts != nil {
		reg.Register(searchDocumentsTool(deps.Contexts))
		reg.Register(getContextTool(deps.Contexts))
	}
	if deps.Documents != nil {
		reg.Register(retrieveDocumentsTool(deps.Documents))
	}
	reg.Register(systemInfoTool(reg, deps))
}
