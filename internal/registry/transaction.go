package registry

import (
	"fmt"
)

// OpKind is the kind of a transaction operation.
type OpKind int

const (
	OpPut OpKind = iota + 1
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Condition is a precondition that must hold for an operation to be applied.
// A failed condition aborts the whole transaction with ErrConditionFailed.
type Condition struct {
	// NotExists requires that no record with the item's key exists. Only valid for puts.
	NotExists bool
	// Equals requires that the stored record holds these column values.
	Equals map[string]any
}

// Operation is one typed write of a transaction. Item is a pointer to a model.
type Operation struct {
	Kind      OpKind
	Item      any
	Condition *Condition
}

func (o Operation) String() string {
	s := fmt.Sprintf("%s %T", o.Kind, o.Item)
	if o.Condition != nil {
		switch {
		case o.Condition.NotExists:
			s += " if not exists"
		case len(o.Condition.Equals) > 0:
			s += fmt.Sprintf(" if %v", o.Condition.Equals)
		}
	}
	return s
}

// Transaction is an ordered list of operations applied all-or-nothing by a Registry.
type Transaction struct {
	ops []Operation
}

func NewTransaction() *Transaction {
	return &Transaction{}
}

// Put creates the item or replaces the stored record with the same key.
func (t *Transaction) Put(item any) *Transaction {
	return t.add(Operation{Kind: OpPut, Item: item})
}

// PutIf writes the item only when the condition holds.
func (t *Transaction) PutIf(item any, condition Condition) *Transaction {
	return t.add(Operation{Kind: OpPut, Item: item, Condition: &condition})
}

// Delete removes the record with the item's key. Deleting a missing record is not an error.
func (t *Transaction) Delete(item any) *Transaction {
	return t.add(Operation{Kind: OpDelete, Item: item})
}

// DeleteIf removes the record only when the condition holds.
func (t *Transaction) DeleteIf(item any, condition Condition) *Transaction {
	return t.add(Operation{Kind: OpDelete, Item: item, Condition: &condition})
}

func (t *Transaction) add(op Operation) *Transaction {
	t.ops = append(t.ops, op)
	return t
}

// Operations returns a copy of the operations in submission order.
func (t *Transaction) Operations() []Operation {
	return append([]Operation(nil), t.ops...)
}

func (t *Transaction) Len() int {
	return len(t.ops)
}

// Count returns how many operations of the kind target items of the same type as item.
func (t *Transaction) Count(kind OpKind, item any) int {
	want := fmt.Sprintf("%T", item)
	n := 0
	for _, op := range t.ops {
		if op.Kind == kind && fmt.Sprintf("%T", op.Item) == want {
			n++
		}
	}
	return n
}

func (t *Transaction) validate() error {
	for i, op := range t.ops {
		if op.Item == nil {
			return fmt.Errorf("operation %d (%s) has no item", i, op.Kind)
		}
		if op.Kind == OpDelete && op.Condition != nil && op.Condition.NotExists {
			return fmt.Errorf("operation %d (%s): a delete cannot require the item to not exist", i, op)
		}
		if op.Condition != nil && op.Condition.NotExists && len(op.Condition.Equals) > 0 {
			return fmt.Errorf("operation %d (%s): conditions NotExists and Equals are exclusive", i, op)
		}
	}
	return nil
}
