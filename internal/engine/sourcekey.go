package engine

import (
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/MrJamesThe3rd/factura/internal/transaction"
)

// SourceKeys fingerprints each transaction by date, description, amount and
// its occurrence among identical rows, so the same statement yields the same
// keys on every run.
func SourceKeys(txs []transaction.Transaction) []string {
	type identity struct {
		date   string
		desc   string
		amount int64
	}

	seen := make(map[identity]int, len(txs))
	keys := make([]string, len(txs))

	for i, tx := range txs {
		id := identity{
			date:   tx.Date.Format("2006-01-02"),
			desc:   tx.Description,
			amount: int64(tx.Amount),
		}

		keys[i] = sourceKey(id.date, id.desc, id.amount, seen[id])
		seen[id]++
	}

	return keys
}

func sourceKey(date, desc string, amount int64, occurrence int) string {
	h := fnv.New64a()
	h.Write([]byte(date))
	h.Write([]byte{0})
	h.Write([]byte(desc))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(amount, 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(occurrence)))

	return fmt.Sprintf("%016x", h.Sum64())
}
