package backing

import "github.com/fusta-fs/fusta/lib/catalog"

// Dispatcher routes a fragment to the right underlying store: the
// mount's selected primary variant (Positional, Mapped, or Resident)
// for fragments from the original source, and a dedicated Resident
// store for fragments created by the Append Ingestor — which are
// always resident in memory regardless of the --cache flag, since
// they never had a place in the original source file to seek into or
// map.
type Dispatcher struct {
	primary  Store
	appended *Resident
}

// NewDispatcher returns a Store that dispatches on
// catalog.Fragment.Appended.
func NewDispatcher(primary Store, appended *Resident) *Dispatcher {
	return &Dispatcher{primary: primary, appended: appended}
}

func (d *Dispatcher) storeFor(frag *catalog.Fragment) Store {
	if frag.Appended {
		return d.appended
	}
	return d.primary
}

func (d *Dispatcher) Extract(frag *catalog.Fragment, l0, l1 int64) ([]byte, error) {
	return d.storeFor(frag).Extract(frag, l0, l1)
}

func (d *Dispatcher) ExtractRaw(frag *catalog.Fragment) ([]byte, error) {
	return d.storeFor(frag).ExtractRaw(frag)
}

func (d *Dispatcher) Close() error {
	if err := d.appended.Close(); err != nil {
		return err
	}
	return d.primary.Close()
}
