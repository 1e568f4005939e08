package ast

import (
	"hash/fnv"
)

// NodeKind tags which arena a Node's ID indexes into.
type NodeKind uint8

const (
	NodeExpr NodeKind = iota
	NodeStmt
	NodeItem
)

// Node is a tagged reference into one of a Builder's arenas. Visitor
// callbacks receive Node rather than a bare ID so a single walk can
// cross between expressions, statements, and items without three
// parallel visitor interfaces.
type Node struct {
	Kind NodeKind
	Expr ExprID
	Stmt StmtID
	Item ItemID
}

func exprNode(id ExprID) Node { return Node{Kind: NodeExpr, Expr: id} }
func stmtNode(id StmtID) Node { return Node{Kind: NodeStmt, Stmt: id} }
func itemNode(id ItemID) Node { return Node{Kind: NodeItem, Item: id} }

// Visitor observes a tree walk. Enter is called before a node's children
// are visited; returning false skips the children (but Exit still runs).
// Exit is called after children have been visited.
type Visitor interface {
	Enter(b *Builder, n Node) bool
	Exit(b *Builder, n Node)
}

// Walk traverses the tree rooted at n, calling v.Enter/v.Exit in preorder
// and postorder respectively. Statement payloads are not yet arena-backed
// (see stmt.go), so a StmtIf/StmtWhile/StmtFor node currently reports
// itself with no children; extend once statement bodies carry payloads.
func Walk(b *Builder, n Node, v Visitor) {
	if b == nil || v == nil {
		return
	}
	if !v.Enter(b, n) {
		v.Exit(b, n)
		return
	}
	switch n.Kind {
	case NodeExpr:
		walkExprChildren(b, n.Expr, v)
	case NodeItem:
		walkItemChildren(b, n.Item, v)
	case NodeStmt:
		// no payload arena yet; nothing to recurse into.
	}
	v.Exit(b, n)
}

func walkExprChildren(b *Builder, id ExprID, v Visitor) {
	e := b.Exprs.Get(id)
	if e == nil {
		return
	}
	switch e.Kind {
	case ExprBinary:
		if d, ok := b.Exprs.Binary(id); ok {
			Walk(b, exprNode(d.Left), v)
			Walk(b, exprNode(d.Right), v)
		}
	case ExprUnary:
		if d, ok := b.Exprs.Unary(id); ok {
			Walk(b, exprNode(d.Operand), v)
		}
	case ExprCast:
		if d, ok := b.Exprs.Cast(id); ok {
			Walk(b, exprNode(d.Value), v)
		}
	case ExprCall:
		if d, ok := b.Exprs.Call(id); ok {
			Walk(b, exprNode(d.Target), v)
			for _, arg := range d.Args {
				Walk(b, exprNode(arg.Value), v)
			}
		}
	case ExprIndex:
		if d, ok := b.Exprs.Index(id); ok {
			Walk(b, exprNode(d.Target), v)
			Walk(b, exprNode(d.Index), v)
		}
	case ExprMember:
		if d, ok := b.Exprs.Member(id); ok {
			Walk(b, exprNode(d.Target), v)
		}
	case ExprTupleIndex:
		if d, ok := b.Exprs.TupleIndex(id); ok {
			Walk(b, exprNode(d.Target), v)
		}
	case ExprGroup:
		if d, ok := b.Exprs.Group(id); ok {
			Walk(b, exprNode(d.Inner), v)
		}
	case ExprTuple:
		if d, ok := b.Exprs.Tuple(id); ok {
			for _, el := range d.Elements {
				Walk(b, exprNode(el), v)
			}
		}
	case ExprArray:
		if d, ok := b.Exprs.Array(id); ok {
			for _, el := range d.Elements {
				Walk(b, exprNode(el), v)
			}
		}
	case ExprMap:
		if d, ok := b.Exprs.Map(id); ok {
			for _, entry := range d.Entries {
				Walk(b, exprNode(entry.Key), v)
				Walk(b, exprNode(entry.Value), v)
			}
		}
	case ExprRangeLit:
		if d, ok := b.Exprs.RangeLit(id); ok {
			if d.Start != NoExprID {
				Walk(b, exprNode(d.Start), v)
			}
			if d.End != NoExprID {
				Walk(b, exprNode(d.End), v)
			}
		}
	case ExprSpread:
		if d, ok := b.Exprs.Spread(id); ok {
			Walk(b, exprNode(d.Value), v)
		}
	case ExprTernary:
		if d, ok := b.Exprs.Ternary(id); ok {
			Walk(b, exprNode(d.Cond), v)
			Walk(b, exprNode(d.TrueExpr), v)
			Walk(b, exprNode(d.FalseExpr), v)
		}
	case ExprAwait:
		if d, ok := b.Exprs.Await(id); ok {
			Walk(b, exprNode(d.Value), v)
		}
	case ExprTask:
		if d, ok := b.Exprs.Task(id); ok {
			Walk(b, exprNode(d.Value), v)
		}
	case ExprSpawn:
		if d, ok := b.Exprs.Spawn(id); ok {
			Walk(b, exprNode(d.Value), v)
		}
	case ExprParallel:
		if d, ok := b.Exprs.Parallel(id); ok {
			Walk(b, exprNode(d.Iterable), v)
			if d.Init != NoExprID {
				Walk(b, exprNode(d.Init), v)
			}
			for _, arg := range d.Args {
				Walk(b, exprNode(arg), v)
			}
			Walk(b, exprNode(d.Body), v)
		}
	case ExprCompare:
		if d, ok := b.Exprs.Compare(id); ok {
			Walk(b, exprNode(d.Value), v)
			for _, arm := range d.Arms {
				if arm.Pattern != NoExprID {
					Walk(b, exprNode(arm.Pattern), v)
				}
				if arm.Guard != NoExprID {
					Walk(b, exprNode(arm.Guard), v)
				}
				Walk(b, exprNode(arm.Result), v)
			}
		}
	case ExprSelect:
		if d, ok := b.Exprs.Select(id); ok {
			walkSelectArms(b, d.Arms, v)
		}
	case ExprRace:
		if d, ok := b.Exprs.Race(id); ok {
			walkSelectArms(b, d.Arms, v)
		}
	case ExprStruct:
		if d, ok := b.Exprs.Struct(id); ok {
			for _, field := range d.Fields {
				Walk(b, exprNode(field.Value), v)
			}
		}
	case ExprAsync:
		if d, ok := b.Exprs.Async(id); ok {
			Walk(b, stmtNode(d.Body), v)
		}
	case ExprBlock:
		if d, ok := b.Exprs.Block(id); ok {
			for _, st := range d.Stmts {
				Walk(b, stmtNode(st), v)
			}
		}
	case ExprIdent, ExprLit:
		// leaves; nothing to recurse into.
	}
}

func walkSelectArms(b *Builder, arms []ExprSelectArm, v Visitor) {
	for _, arm := range arms {
		if arm.Await != NoExprID {
			Walk(b, exprNode(arm.Await), v)
		}
		if arm.Result != NoExprID {
			Walk(b, exprNode(arm.Result), v)
		}
	}
}

func walkItemChildren(b *Builder, id ItemID, v Visitor) {
	item := b.Items.Arena.Get(uint32(id))
	if item == nil {
		return
	}
	switch item.Kind {
	case ItemFn:
		if fn, ok := b.Items.Fn(id); ok && fn.Body != NoStmtID {
			Walk(b, stmtNode(fn.Body), v)
		}
	case ItemLet:
		if let, ok := b.Items.Let(id); ok && let.Value != NoExprID {
			Walk(b, exprNode(let.Value), v)
		}
	case ItemConst:
		if c, ok := b.Items.Const(id); ok && c.Value != NoExprID {
			Walk(b, exprNode(c.Value), v)
		}
	}
}

// Fingerprint computes an FNV-1a structural hash of the expression rooted
// at id: two expressions with the same shape and literal/operator payload
// hash equal regardless of span, so it can key deduplication of otherwise
// distinct AST subtrees (e.g. detecting repeated instantiation arguments).
func Fingerprint(b *Builder, id ExprID) uint64 {
	h := fnv.New64a()
	fingerprintExpr(b, id, h)
	return h.Sum64()
}

func fpWriteByte(h fingerprintHasher, bs ...byte) {
	_, _ = h.Write(bs)
}

type fingerprintHasher interface {
	Write(p []byte) (int, error)
}

func fpWriteUint32(h fingerprintHasher, n uint32) {
	fpWriteByte(h, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
}

func fingerprintExpr(b *Builder, id ExprID, h fingerprintHasher) {
	e := b.Exprs.Get(id)
	if e == nil {
		fpWriteByte(h, 0xff)
		return
	}
	fpWriteByte(h, byte(e.Kind))
	switch e.Kind {
	case ExprIdent:
		if d, ok := b.Exprs.Ident(id); ok {
			fpWriteUint32(h, uint32(d.Name))
		}
	case ExprLit:
		if d, ok := b.Exprs.Literal(id); ok {
			fpWriteByte(h, byte(d.Kind))
			fpWriteUint32(h, uint32(d.Value))
		}
	case ExprBinary:
		if d, ok := b.Exprs.Binary(id); ok {
			fpWriteByte(h, byte(d.Op))
			fingerprintExpr(b, d.Left, h)
			fingerprintExpr(b, d.Right, h)
		}
	case ExprUnary:
		if d, ok := b.Exprs.Unary(id); ok {
			fpWriteByte(h, byte(d.Op))
			fingerprintExpr(b, d.Operand, h)
		}
	case ExprCast:
		if d, ok := b.Exprs.Cast(id); ok {
			fpWriteUint32(h, uint32(d.Type))
			fingerprintExpr(b, d.Value, h)
		}
	case ExprCall:
		if d, ok := b.Exprs.Call(id); ok {
			fingerprintExpr(b, d.Target, h)
			for _, arg := range d.Args {
				fpWriteUint32(h, uint32(arg.Name))
				fingerprintExpr(b, arg.Value, h)
			}
		}
	case ExprIndex:
		if d, ok := b.Exprs.Index(id); ok {
			fingerprintExpr(b, d.Target, h)
			fingerprintExpr(b, d.Index, h)
		}
	case ExprMember:
		if d, ok := b.Exprs.Member(id); ok {
			fingerprintExpr(b, d.Target, h)
			fpWriteUint32(h, uint32(d.Field))
		}
	case ExprGroup:
		if d, ok := b.Exprs.Group(id); ok {
			fingerprintExpr(b, d.Inner, h)
		}
	case ExprTuple:
		if d, ok := b.Exprs.Tuple(id); ok {
			for _, el := range d.Elements {
				fingerprintExpr(b, el, h)
			}
		}
	case ExprArray:
		if d, ok := b.Exprs.Array(id); ok {
			for _, el := range d.Elements {
				fingerprintExpr(b, el, h)
			}
		}
	default:
		// remaining kinds contribute only their tag byte; sufficient
		// for deduplicating instantiation argument lists, which are
		// built from idents, literals, and paths.
	}
}
