package core


import (
	"fmt"
	"sync"
)


// Remember which nonces each account already used in this process.
// The ledger never picks or corrects a nonce, it only refuses to let the
// same `(account, nonce)` pair reach a node twice.
//
type NonceLedger struct {
	lock   sync.Mutex
	bases  map[string]*accountNonces
}

type accountNonces struct {
	used  map[uint64]string
}

func NewNonceLedger() *NonceLedger {
	return &NonceLedger{
		bases: make(map[string]*accountNonces),
	}
}

// Reserve `nonce` of `account` for the transaction `hash`.
// Fail if the nonce is already reserved, even for the same hash.
//
func (this *NonceLedger) reserve(account string, nonce uint64, hash string) error {
	var slot *accountNonces
	var prev string
	var ok bool

	this.lock.Lock()
	defer this.lock.Unlock()

	slot, ok = this.bases[account]
	if !ok {
		slot = &accountNonces{
			used: make(map[uint64]string),
		}
		this.bases[account] = slot
	}

	prev, ok = slot.used[nonce]
	if ok {
		return fmt.Errorf("nonce %d of %s already used by %s", nonce,
			account, prev)
	}

	slot.used[nonce] = hash

	return nil
}

// Forget a reservation for a transaction the node refused: the nonce was
// never consumed on chain.
//
func (this *NonceLedger) release(account string, nonce uint64, hash string) {
	var slot *accountNonces
	var ok bool

	this.lock.Lock()
	defer this.lock.Unlock()

	slot, ok = this.bases[account]
	if !ok {
		return
	}

	if slot.used[nonce] == hash {
		delete(slot.used, nonce)
	}
}

// Return true if `nonce` of `account` was already used for a submitted
// transaction.
//
func (this *NonceLedger) Used(account string, nonce uint64) bool {
	var slot *accountNonces
	var ok bool

	this.lock.Lock()
	defer this.lock.Unlock()

	slot, ok = this.bases[account]
	if !ok {
		return false
	}

	_, ok = slot.used[nonce]

	return ok
}
