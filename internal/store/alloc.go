package store

import (
	"fmt"
	"regexp"
	"strconv"
)

var plainIDPattern = regexp.MustCompile(`^(\d+)$`)

// NextPlainID returns one more than the largest purely numeric id in
// existing, or "1" when there is none. Non-numeric ids are ignored.
func NextPlainID(existing []string) string {
	max := 0
	for _, id := range existing {
		m := plainIDPattern.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}

// NextGroupedID returns base when it is free. Otherwise it returns
// base_N where N is one more than the largest suffix already used, starting
// at 2.
func NextGroupedID(base string, existing []string) string {
	taken := false
	max := 1
	suffix := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `_(\d+)$`)
	for _, id := range existing {
		if id == base {
			taken = true
			continue
		}
		m := suffix.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	if !taken {
		return base
	}
	return fmt.Sprintf("%s_%d", base, max+1)
}

// UniqueExplicitID renames a user supplied id until taken reports it free:
// id, id_2, id_3, and so on.
func UniqueExplicitID(id string, taken func(string) bool) string {
	if !taken(id) {
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", id, n)
		if !taken(candidate) {
			return candidate
		}
	}
}

// Container CRM id prefixes.
const (
	GroupPrefix       = "grp_"
	ClonePrefix       = "cl_"
	MasterSlavePrefix = "ms_"
)

// PrimitiveCRMID is the CRM id given to a primitive with an allocated id.
func PrimitiveCRMID(name, id string) string {
	return "res_" + name + "_" + id
}

// IDFromCRMID recovers the per-bucket id from a CRM id reported by the
// cluster manager. Ids that do not follow the res_<name>_<id> form are used
// as is.
func IDFromCRMID(kind Kind, name, crmID string) string {
	if kind != Primitive {
		return crmID
	}
	prefix := "res_" + name + "_"
	if len(crmID) > len(prefix) && crmID[:len(prefix)] == prefix {
		return crmID[len(prefix):]
	}
	return crmID
}
