package slide

import "image"

// Properties is a read-only, ordered view of a slide's metadata.
//
// The key set is fetched once when the slide is opened; values are read on
// demand through the owning Slide, so lookups fail once the handle is closed
// or has latched an error.
type Properties struct {
	keys []string
	get  func(name string) (string, bool, error)
}

// Len returns the number of properties.
func (p *Properties) Len() int { return len(p.keys) }

// Keys returns the property names in order.
func (p *Properties) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Get returns the value of name. ok is false when the slide has no such
// property.
func (p *Properties) Get(name string) (value string, ok bool, err error) {
	return p.get(name)
}

// Map reads every property into a plain map.
func (p *Properties) Map() (map[string]string, error) {
	m := make(map[string]string, len(p.keys))
	for _, k := range p.keys {
		v, ok, err := p.get(k)
		if err != nil {
			return nil, err
		}
		if ok {
			m[k] = v
		}
	}
	return m, nil
}

// AssociatedImages is a read-only, ordered view of a slide's auxiliary
// images such as the label or macro photograph. Images are decoded on
// every Get.
type AssociatedImages struct {
	keys []string
	get  func(name string) (*image.NRGBA, bool, error)
}

// Len returns the number of associated images.
func (a *AssociatedImages) Len() int { return len(a.keys) }

// Keys returns the image names in order.
func (a *AssociatedImages) Keys() []string {
	return append([]string(nil), a.keys...)
}

// Get decodes the named image. ok is false when no such image exists.
func (a *AssociatedImages) Get(name string) (img *image.NRGBA, ok bool, err error) {
	for _, k := range a.keys {
		if k == name {
			return a.get(name)
		}
	}
	return nil, false, nil
}
