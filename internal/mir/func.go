package mir

import (
	"rillc/internal/source"
	"rillc/internal/symbols"
	"rillc/internal/types"
)

type Func struct {
	ID   FuncID
	Sym  symbols.SymbolID
	Name string
	Span source.Span

	Result types.TypeID

	Locals []Local
	Blocks []Block
	Entry  BlockID
}
