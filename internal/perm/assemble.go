package perm

import (
	"sort"
	"strings"
)

// groupGrants builds the per-user permission sets from a flat grant
// list: one pass, duplicates collapsed, each set sorted lexically so
// the output never depends on storage return order.
func groupGrants(grants []Grant) map[string][]string {
	seen := make(map[string]map[string]struct{}, len(grants))
	for _, g := range grants {
		kind := strings.TrimSpace(g.Permission)
		if kind == "" {
			continue
		}
		set, ok := seen[g.UserID]
		if !ok {
			set = make(map[string]struct{})
			seen[g.UserID] = set
		}
		set[kind] = struct{}{}
	}

	grouped := make(map[string][]string, len(seen))
	for userID, set := range seen {
		kinds := make([]string, 0, len(set))
		for kind := range set {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		grouped[userID] = kinds
	}
	return grouped
}

// assemble combines the fetched page, the grouped permission sets and
// the paging metadata into the final response. The output order is
// exactly the input user order; a user without grants gets an empty
// set, and an avatar token is derived only from a non-empty email.
func assemble(users []User, permissions map[string][]string, paging Paging, avatar AvatarFunc) Page {
	out := make([]ResponseUser, 0, len(users))
	for _, u := range users {
		ru := ResponseUser{
			Login:       u.Login,
			Permissions: []string{},
		}
		if kinds, ok := permissions[u.ID]; ok {
			ru.Permissions = kinds
		}
		if name := strings.TrimSpace(u.Name); name != "" {
			ru.Name = name
		}
		if email := strings.TrimSpace(u.Email); email != "" {
			ru.Email = email
			if avatar != nil {
				ru.Avatar = avatar(email)
			}
		}
		out = append(out, ru)
	}
	return Page{Users: out, Paging: paging}
}
