package handler

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/V4T54L/tenancy-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// parseListQuery reads the filter, sort and paging parameters of the lease
// list. Every problem is reported at once.
func parseListQuery(q url.Values, defaultSize, maxSize int) (domain.LeaseFilter, domain.PageRequest, error) {
	v := domain.ValidationErrors{}
	var f domain.LeaseFilter

	for _, raw := range q["status"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s == "" {
				continue
			}
			st, ok := domain.ParseStatus(strings.ToUpper(s))
			if !ok {
				v.Add("status", "unknown status "+s)
				continue
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if t := q.Get("leaseType"); t != "" {
		if _, ok := domain.DefaultsFor(domain.LeaseType(t)); !ok {
			v.Add("leaseType", "unknown lease type "+t)
		}
		f.Type = domain.LeaseType(t)
	}
	f.HousingUnitID = q.Get("housingUnitId")

	f.StartFrom = queryDate(q, "startDateFrom", v)
	f.StartTo = queryDate(q, "startDateTo", v)
	f.EndFrom = queryDate(q, "endDateFrom", v)
	f.EndTo = queryDate(q, "endDateTo", v)
	f.RentMin = queryDecimal(q, "rentMin", v)
	f.RentMax = queryDecimal(q, "rentMax", v)

	page := domain.PageRequest{Size: defaultSize}
	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			v.Add("page", "must be a non-negative integer")
		}
		page.Page = n
	}
	if s := q.Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		switch {
		case err != nil || n < 0:
			v.Add("size", "must be a non-negative integer")
		case n > maxSize:
			page.Size = maxSize
		case n > 0:
			page.Size = n
		}
	}
	if page.Size > 0 && page.Page > math.MaxInt/page.Size {
		v.Add("page", "is too large")
	}
	sort, err := domain.ParseSort(q.Get("sort"))
	if err != nil {
		v.Add("sort", "must be field,asc|desc on startDate, endDate, monthlyRent, status, leaseType or createdAt")
	}
	page.Sort = sort

	if err := v.Err(); err != nil {
		return domain.LeaseFilter{}, domain.PageRequest{}, err
	}
	return f, page, nil
}

func queryDate(q url.Values, key string, v domain.ValidationErrors) domain.Date {
	s := q.Get(key)
	if s == "" {
		return domain.Date{}
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		v.Add(key, "must be a YYYY-MM-DD date")
	}
	return d
}

func queryDecimal(q url.Values, key string, v domain.ValidationErrors) *decimal.Decimal {
	s := q.Get(key)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		v.Add(key, "must be a number")
		return nil
	}
	return &d
}
