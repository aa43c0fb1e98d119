// Сборка заявки ATS из сырых полей формы.
//
// Основные возможности:
//   - Значения по умолчанию для даты, супервайзера и бригады.
//   - Выбор вида работ: литерал OTRO со свободным текстом заменяется этим текстом.
//   - Поиск запланированной беседы по номеру.
//   - Сборка участников по слотам формы из справочника активных техников.
//   - Сохранение подписей и фото во временные файлы через Assets.
package intake

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cicsa-sst/ats/internal/ats/types"
)

var ErrNoSession = errors.New("session user required")

// Upload загруженный файл формы.
type Upload struct {
	Name   string
	Reader io.Reader
}

// SlotInput поля одного слота техника (tec{i}, epp{i}[], obs{i}, firma{i}, foto_tec{i}).
type SlotInput struct {
	TechnicianKey string
	Equipment     []string
	Observation   string
	Signature     string
	Photo         *Upload
}

// FormInput сырые поля формы.
type FormInput struct {
	Date      string
	StartTime string
	EndTime   string

	WorkType      string
	WorkTypeOther string

	Location        string
	Recommendations string
	Supervisor      string

	TalkItem        string
	PresenterManual string

	Hazards     []string
	HazardOther string

	// Slots[0] соответствует слоту 1
	Slots []SlotInput

	GeneralPhoto *Upload
}

// Assets хранилище временных изображений заявки.
type Assets interface {
	SaveSignature(slot int, dataURL string) (string, error)
	SavePhoto(prefix string, r io.Reader) (string, error)
}

type Options struct {
	Now             time.Time
	MaxParticipants int
	Area            string
}

// Build нормализует поля формы в заявку. Отсутствующие и неизвестные слоты техников пропускаются без ошибки.
// Ошибки сохранения изображений логируются, поле остается пустым.
func Build(in FormInput, session types.SessionUser, technicians []types.Technician, talks []types.ScheduledTalk, assets Assets, opts Options) (types.Submission, error) {
	if strings.TrimSpace(session.Login) == "" {
		return types.Submission{}, ErrNoSession
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.MaxParticipants <= 0 {
		opts.MaxParticipants = types.DefaultMaxParticipants
	}

	sub := types.Submission{
		Date:            in.Date,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		Activity:        ResolveActivity(in.WorkType, in.WorkTypeOther),
		Location:        in.Location,
		Recommendations: in.Recommendations,
		Supervisor:      in.Supervisor,

		Crew:            session.CrewOrDefault(),
		Zone:            session.Zone,
		Contractor:      session.Contractor,
		RegisteringUser: session.Login,
		Area:            opts.Area,
	}
	if sub.Date == "" {
		sub.Date = opts.Now.Format(types.DateLayout)
	}
	if strings.TrimSpace(sub.Supervisor) == "" {
		sub.Supervisor = types.NoSupervisor
	}

	sub.BriefingTopic, sub.BriefingPresenter = ResolveTalk(in.TalkItem, in.PresenterManual, talks)
	sub.Hazards = ResolveHazards(in.Hazards, in.HazardOther)

	for i := 1; i <= opts.MaxParticipants && i <= len(in.Slots); i++ {
		slot := in.Slots[i-1]
		if slot.TechnicianKey == "" {
			continue
		}
		tec, ok := findTechnician(technicians, slot.TechnicianKey)
		if !ok {
			slog.Debug("Skip unknown technician slot", "slot", i, "key", slot.TechnicianKey)
			continue
		}

		p := types.Participant{
			ItemNumber:    i,
			Login:         tec.Login,
			Name:          tec.Name,
			Role:          tec.Role,
			NationalID:    tec.NationalID,
			Crew:          tec.Crew,
			Zone:          tec.Zone,
			Contractor:    tec.Contractor,
			EquipmentTags: slot.Equipment,
			Observation:   strings.TrimSpace(slot.Observation),
		}

		if assets != nil && strings.Contains(slot.Signature, "base64") {
			path, err := assets.SaveSignature(i, slot.Signature)
			if err != nil {
				slog.Error("Save technician signature", "slot", i, "err", err)
			}
			p.SignaturePath = path
		}
		if assets != nil && slot.Photo != nil && slot.Photo.Name != "" {
			path, err := assets.SavePhoto(fmt.Sprintf("foto_tec%d", i), slot.Photo.Reader)
			if err != nil {
				slog.Error("Save technician photo", "slot", i, "err", err)
			}
			p.PhotoPath = path
		}

		sub.Participants = append(sub.Participants, p)
	}

	if assets != nil && in.GeneralPhoto != nil && in.GeneralPhoto.Name != "" {
		path, err := assets.SavePhoto("foto_general", in.GeneralPhoto.Reader)
		if err != nil {
			slog.Error("Save general photo", "err", err)
		}
		sub.GeneralPhotoPath = path
	}

	return sub, nil
}

// ResolveActivity возвращает свободный текст (с обрезанными пробелами), если выбран OTRO (или OTHER) и текст не пуст, иначе значение селектора как есть.
func ResolveActivity(workType, other string) string {
	isOther := workType == types.OtherWorkType || workType == types.OtherWorkTypeEN
	if isOther && strings.TrimSpace(other) != "" {
		return strings.TrimSpace(other)
	}
	return workType
}

// ResolveTalk ищет беседу по номеру. Если беседа не найдена, значение селектора считается темой.
func ResolveTalk(item, manualPresenter string, talks []types.ScheduledTalk) (string, string) {
	for _, t := range talks {
		if strconv.Itoa(t.Item) == item {
			presenter := t.Presenter
			if presenter == "" {
				presenter = manualPresenter
			}
			return t.Topic, presenter
		}
	}
	return item, manualPresenter
}

func ResolveHazards(hazards []string, other string) []string {
	res := make([]string, 0, len(hazards)+1)
	res = append(res, hazards...)
	if other = strings.TrimSpace(other); other != "" {
		res = append(res, other)
	}
	return res
}

func findTechnician(technicians []types.Technician, login string) (types.Technician, bool) {
	for _, t := range technicians {
		if t.Login == login {
			return t, true
		}
	}
	return types.Technician{}, false
}
