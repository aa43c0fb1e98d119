package export

import "strings"

// EquipmentCategory категория EPP с подписью столбца и ключевыми словами.
type EquipmentCategory struct {
	Label    string
	Keywords []string
}

// EquipmentCategories порядок столбцов EPP в таблице участников.
var EquipmentCategories = []EquipmentCategory{
	{Label: "Fotocheck", Keywords: []string{"fotocheck", "foto"}},
	{Label: "Uniforme", Keywords: []string{"uniforme"}},
	{Label: "Casco", Keywords: []string{"casco"}},
	{Label: "Barbiquejo", Keywords: []string{"barbuquejo", "barb"}},
	{Label: "Lentes", Keywords: []string{"lentes"}},
	{Label: "UV", Keywords: []string{"uv", "ultravioleta"}},
	{Label: "Guantes Dielectricos", Keywords: []string{"diel"}},
	{Label: "Guantes Anticorte", Keywords: []string{"anticorte"}},
	{Label: "Chaleco", Keywords: []string{"chaleco"}},
	{Label: "Arnes", Keywords: []string{"arnes", "arnés", "cinturon", "cinturón"}},
	{Label: "Botas", Keywords: []string{"bota"}},
	{Label: "SCTR", Keywords: []string{"sctr"}},
}

// Matches true, если хотя бы одна отметка содержит хотя бы одно ключевое слово категории (без учета регистра).
func (c EquipmentCategory) Matches(tags []string) bool {
	for _, kw := range c.Keywords {
		kw = strings.ToLower(kw)
		for _, tag := range tags {
			if strings.Contains(strings.ToLower(tag), kw) {
				return true
			}
		}
	}
	return false
}

// ClassifyEquipment возвращает отметки по каждой категории в порядке EquipmentCategories.
func ClassifyEquipment(tags []string) []bool {
	res := make([]bool, len(EquipmentCategories))
	for i, c := range EquipmentCategories {
		res[i] = c.Matches(tags)
	}
	return res
}
