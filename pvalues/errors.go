package pvalues

import "fmt"

type OperationNotPermittedError struct {
	Op        Op
	CreatedBy string
}

func (o *OperationNotPermittedError) Error() string {
	if o.CreatedBy == "" {
		return fmt.Sprintf("operation %q is not permitted on a p-value", o.Op)
	}
	return fmt.Sprintf("operation %q is not permitted on a p-value created by %s", o.Op, o.CreatedBy)
}

type InvalidValueError struct {
	Value     float64
	CreatedBy string
	Reason    string
}

func (i *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid p-value %v from %s: %s", i.Value, i.CreatedBy, i.Reason)
}
