package service

import "github.com/iliyamo/workbook-assignment/internal/model"

// ProgressStatus derives a status from how many of total questions have
// answers.  A workbook without questions stays assigned until submitted.
func ProgressStatus(answered, total int) model.Status {
	switch {
	case total <= 0 || answered <= 0:
		return model.StatusAssigned
	case answered >= total:
		return model.StatusCompleted
	default:
		return model.StatusInProgress
	}
}

// NextStatus is the instance state machine.  Every write path calls it
// exactly once with the current status, the answer counts after the write
// and the status explicitly requested by the caller ("" for none).
//
// Submitted and reviewed are sticky: the progress rule never moves an
// instance out of them.  Submitted may be requested from any unfrozen state;
// reviewed only from submitted.  Any other requested value is ignored in
// favour of the progress rule.
func NextStatus(current model.Status, answered, total int, requested model.Status) (model.Status, error) {
	if requested != "" && !requested.Valid() {
		return current, newError(KindValidation, CodeInvalidStatus, "unknown status "+string(requested))
	}

	if current.Frozen() {
		switch {
		case requested == "" || requested == current:
			return current, nil
		case current == model.StatusSubmitted && requested == model.StatusReviewed:
			return model.StatusReviewed, nil
		default:
			return current, instanceFrozen(string(current))
		}
	}

	switch requested {
	case model.StatusSubmitted:
		return model.StatusSubmitted, nil
	case model.StatusReviewed:
		return current, newError(KindConflict, CodeInvalidTransition, "only submitted workbooks can be reviewed")
	}
	return ProgressStatus(answered, total), nil
}
