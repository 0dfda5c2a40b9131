package beds

import (
	"errors"
	"sort"
)

// DefaultCapacity is the number of beds each hospital starts with.
const DefaultCapacity = 30

var (
	ErrUnknownHospital = errors.New("unknown hospital")
	ErrBedUnavailable  = errors.New("bed is not available")
	ErrBedAlreadyFree  = errors.New("bed is already free")
	ErrUnknownBed      = errors.New("bed number out of range")
)

// Inventory tracks which bed numbers are free in every hospital.
// Bed numbers run from 1 to the capacity and never change; a number is
// either in the free set or held by exactly one allocation.
//
// Inventory is not safe for concurrent use. The appointment ledger owns it
// and serializes every call.
type Inventory struct {
	capacity  int
	hospitals []string
	free      map[string]map[int]struct{}
}

// NewInventory creates an inventory where every hospital has all beds free.
func NewInventory(hospitals []string, capacity int) *Inventory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	inv := &Inventory{
		capacity: capacity,
		free:     make(map[string]map[int]struct{}, len(hospitals)),
	}

	for _, h := range hospitals {
		if _, dup := inv.free[h]; dup {
			continue
		}
		pool := make(map[int]struct{}, capacity)
		for n := 1; n <= capacity; n++ {
			pool[n] = struct{}{}
		}
		inv.free[h] = pool
		inv.hospitals = append(inv.hospitals, h)
	}

	return inv
}

// Capacity returns the fixed number of beds per hospital.
func (inv *Inventory) Capacity() int {
	return inv.capacity
}

// Hospitals returns the hospital names in registration order.
func (inv *Inventory) Hospitals() []string {
	out := make([]string, len(inv.hospitals))
	copy(out, inv.hospitals)
	return out
}

// HasHospital reports whether the hospital is known.
func (inv *Inventory) HasHospital(hospital string) bool {
	_, ok := inv.free[hospital]
	return ok
}

// Allocate removes bed from the free set of hospital.
func (inv *Inventory) Allocate(hospital string, bed int) error {
	pool, ok := inv.free[hospital]
	if !ok {
		return ErrUnknownHospital
	}
	if _, free := pool[bed]; !free {
		return ErrBedUnavailable
	}
	delete(pool, bed)
	return nil
}

// Release puts bed back into the free set of hospital.
func (inv *Inventory) Release(hospital string, bed int) error {
	pool, ok := inv.free[hospital]
	if !ok {
		return ErrUnknownHospital
	}
	if bed < 1 || bed > inv.capacity {
		return ErrUnknownBed
	}
	if _, free := pool[bed]; free {
		return ErrBedAlreadyFree
	}
	pool[bed] = struct{}{}
	return nil
}

func (inv *Inventory) AvailableCount(hospital string) (int, error) {
	pool, ok := inv.free[hospital]
	if !ok {
		return 0, ErrUnknownHospital
	}
	return len(pool), nil
}

func (inv *Inventory) IsAvailable(hospital string, bed int) (bool, error) {
	pool, ok := inv.free[hospital]
	if !ok {
		return false, ErrUnknownHospital
	}
	_, free := pool[bed]
	return free, nil
}

// Available returns the free bed numbers of hospital in ascending order.
func (inv *Inventory) Available(hospital string) ([]int, error) {
	pool, ok := inv.free[hospital]
	if !ok {
		return nil, ErrUnknownHospital
	}

	out := make([]int, 0, len(pool))
	for n := range pool {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}
