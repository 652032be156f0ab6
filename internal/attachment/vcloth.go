package attachment

import "charattach/internal/simulation"

// VClothAttachment carries a simulated cloth payload.
type VClothAttachment struct {
	base
	Cloth simulation.ClothParams
}

func newVCloth(name string) *VClothAttachment {
	return &VClothAttachment{base: newBase(name, TypeVCloth, ""), Cloth: simulation.DefaultClothParams()}
}

// AddBinding accepts cloth or skin payloads.
func (a *VClothAttachment) AddBinding(obj Object) error {
	if obj == nil {
		a.clear()
		return nil
	}
	switch obj.Kind() {
	case KindCloth, KindSkinMesh:
		a.bind(obj)
		return nil
	}
	return ErrIncompatibleObject
}

func (a *VClothAttachment) UpdateAttModelRelative() {}

func (a *VClothAttachment) update() {
	a.flags &^= FlagVisible
	if a.obj == nil || a.Cloth.Hide {
		return
	}
	a.flags |= FlagVisible
	a.obj.ProcessAttachment(a)
}
