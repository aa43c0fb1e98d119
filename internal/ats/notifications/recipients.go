package notifications

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
)

var ErrNoRecipients = errors.New("no report recipients configured")

// ResolveRecipients дополняет адрес по умолчанию адресом супервайзера из справочника.
// Порядок поиска: точное совпадение, совпадение в верхнем регистре, сравнение нормализованных ключей справочника.
// Если найти адрес не удалось, отчет уходит только на адрес по умолчанию и копии.
// Список to может быть пустым, тогда письмо доставляется только по копиям.
func ResolveRecipients(supervisor string, directory map[string]string, defaultTo string, cc []string) ([]string, []string, error) {
	defaultTo = strings.TrimSpace(defaultTo)
	ccList := cleanList(cc)
	if defaultTo == "" && len(ccList) == 0 {
		return nil, nil, ErrNoRecipients
	}

	var to []string
	if defaultTo != "" {
		to = append(to, defaultTo)
	}
	if addr := lookupSupervisor(supervisor, directory); addr != "" && !contains(to, addr) {
		to = append(to, addr)
	}

	var resCC []string
	for _, addr := range ccList {
		if !contains(to, addr) && !contains(resCC, addr) {
			resCC = append(resCC, addr)
		}
	}
	return to, resCC, nil
}

func lookupSupervisor(supervisor string, directory map[string]string) string {
	if len(directory) == 0 {
		return ""
	}
	raw := supervisor
	trimmed := strings.TrimSpace(supervisor)
	if trimmed == "" {
		return ""
	}
	upper := strings.ToUpper(trimmed)

	for _, key := range []string{raw, trimmed, upper} {
		if addr := strings.TrimSpace(directory[key]); addr != "" {
			return addr
		}
	}

	keys := make([]string, 0, len(directory))
	for k := range directory {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var found, foundKey string
	for _, k := range keys {
		if strings.ToUpper(strings.TrimSpace(k)) != upper {
			continue
		}
		addr := strings.TrimSpace(directory[k])
		if addr == "" {
			continue
		}
		if found == "" {
			found, foundKey = addr, k
			continue
		}
		if addr != found {
			slog.Warn("Ambiguous supervisor directory keys", "supervisor", upper, "used", foundKey, "ignored", k)
		}
	}
	return found
}

func cleanList(list []string) []string {
	var res []string
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			res = append(res, s)
		}
	}
	return res
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
