package dedup

import (
	"slices"

	"github.com/agentstation/placemap/pkg/places"
)

// mergePair merges two duplicates. The one with higher confidence is primary;
// on a tie a stays primary.
func mergePair(a, b *places.Place) *places.Place {
	if b.Confidence > a.Confidence {
		a, b = b, a
	}
	return Merge(a, b)
}

// Merge combines primary and secondary into a new place. Scalar fields of
// primary win unless absent; lists are unioned without duplicates; source
// references and attributes are unioned with primary winning collisions.
func Merge(primary, secondary *places.Place) *places.Place {
	out := primary.Clone()

	out.ID = firstNonEmpty(primary.ID, secondary.ID)
	out.Name = firstNonEmpty(primary.Name, secondary.Name)
	out.Brand = firstNonEmpty(primary.Brand, secondary.Brand)
	out.OperatingStatus = firstNonEmpty(primary.OperatingStatus, secondary.OperatingStatus)
	out.Category.Primary = firstNonEmpty(primary.Category.Primary, secondary.Category.Primary)
	out.Category.Secondary = union(primary.Category.Secondary, secondary.Category.Secondary)

	out.Address = places.Address{
		Street:   firstNonEmpty(primary.Address.Street, secondary.Address.Street),
		City:     firstNonEmpty(primary.Address.City, secondary.Address.City),
		State:    firstNonEmpty(primary.Address.State, secondary.Address.State),
		Postcode: firstNonEmpty(primary.Address.Postcode, secondary.Address.Postcode),
		Country:  firstNonEmpty(primary.Address.Country, secondary.Address.Country),
	}

	out.Contacts = places.Contacts{
		Socials:  union(primary.Contacts.Socials, secondary.Contacts.Socials),
		Websites: union(primary.Contacts.Websites, secondary.Contacts.Websites),
		Phones:   union(primary.Contacts.Phones, secondary.Contacts.Phones),
		Emails:   union(primary.Contacts.Emails, secondary.Contacts.Emails),
	}

	for name, ref := range secondary.Sources {
		if _, ok := out.Sources[name]; !ok {
			out.AddSource(name, ref)
		}
	}

	if secondary.Attributes.Len() > 0 {
		if out.Attributes == nil {
			out.Attributes = places.NewAttributes()
		}
		secondary.Attributes.Range(func(k string, v any) bool {
			if _, ok := out.Attributes.Get(k); !ok {
				out.Attributes.Set(k, v)
			}
			return true
		})
	}

	if out.Distance == nil && secondary.Distance != nil {
		d := *secondary.Distance
		out.Distance = &d
	}

	for _, o := range secondary.Layers {
		if !slices.ContainsFunc(out.Layers, func(x places.Overlay) bool { return x.Slug == o.Slug }) {
			out.Layers = append(out.Layers, o)
		}
	}

	return out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// union returns a followed by the members of b not already present.
func union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
