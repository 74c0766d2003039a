package rfm

import (
	"sort"
	"sync"
	"time"

	"github.com/ignite/rfm-segmentation/internal/domain"
)

// DefaultFeatureWorkers bounds the per-customer feature computation pool
// when the caller doesn't configure one.
const DefaultFeatureWorkers = 8

// Calculator turns raw order history into one RFMVector per customer for a
// snapshot date. Output is a pure function of (orders, calcDate, windowDays):
// identical inputs always yield identical vectors, regardless of worker count.
type Calculator struct {
	// Workers is the number of goroutines computing customer vectors.
	// Customers are independent, so any positive value is safe.
	Workers int
}

// Calculate computes one vector per customer, ordered by customer_id.
// Customers with no qualifying orders in the window receive the no-activity
// sentinel (recency = windowDays+1, frequency = 0, monetary = 0). Refund
// amounts reduce the monetary sum as-is; the final value is clamped at 0.
func (c Calculator) Calculate(customers []domain.Customer, orders []domain.Order, calcDate time.Time, windowDays int) []domain.RFMVector {
	ids := make([]string, len(customers))
	for i, cust := range customers {
		ids[i] = cust.CustomerID
	}
	sort.Strings(ids)

	byCustomer := make(map[string][]domain.Order, len(customers))
	for _, o := range orders {
		byCustomer[o.CustomerID] = append(byCustomer[o.CustomerID], o)
	}

	workers := c.Workers
	if workers <= 0 {
		workers = DefaultFeatureWorkers
	}
	if workers > len(ids) {
		workers = len(ids)
	}

	vectors := make([]domain.RFMVector, len(ids))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				vectors[i] = customerVector(ids[i], byCustomer[ids[i]], calcDate, windowDays)
			}
		}()
	}
	for i := range ids {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return vectors
}

func customerVector(customerID string, orders []domain.Order, calcDate time.Time, windowDays int) domain.RFMVector {
	v := domain.RFMVector{
		CustomerID: customerID,
		CalcDate:   calcDate,
		// no-activity sentinel: strictly worse than any in-window order
		RecencyDays: windowDays + 1,
	}

	var latest time.Time
	var sum float64
	count := 0
	for _, o := range orders {
		if !o.CountsTowardRFM(calcDate, windowDays) {
			continue
		}
		if count == 0 || o.OrderDate.After(latest) {
			latest = o.OrderDate
		}
		sum += o.Amount
		count++
	}
	if count == 0 {
		return v
	}

	v.RecencyDays = int(calcDate.Sub(latest).Hours() / 24)
	v.Frequency = count
	v.Monetary = sum
	if v.Monetary < 0 {
		// Refunds may drag the window total negative; monetary is
		// defined as non-negative, so floor it here and nowhere else.
		v.Monetary = 0
	}
	return v
}
