package cli

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/domain/model"
	"github.com/secmon-lab/riskmatrix/pkg/service/riskapi"
)

// View parses the flags into a register view
func (v *viewFlags) View() (model.RegisterView, error) {
	filter, err := model.ParseLevelFilter(v.level)
	if err != nil {
		return model.RegisterView{}, goerr.Wrap(err, "invalid --level", goerr.V("level", v.level))
	}

	view := model.RegisterView{Filter: filter}
	if v.sort == "" {
		return view, nil
	}

	field, err := model.ParseSortField(v.sort)
	if err != nil {
		return model.RegisterView{}, goerr.Wrap(err, "invalid --sort", goerr.V("sort", v.sort))
	}
	dir, err := model.ParseSortDirection(v.order)
	if err != nil {
		return model.RegisterView{}, goerr.Wrap(err, "invalid --order", goerr.V("order", v.order))
	}
	view.Sort = model.SortState{Field: field, Direction: dir}
	return view, nil
}

// ListOptions converts the validated view into API query options
func (v *viewFlags) ListOptions() (riskapi.ListOptions, error) {
	view, err := v.View()
	if err != nil {
		return riskapi.ListOptions{}, err
	}
	opts := riskapi.ListOptions{Level: string(view.Filter)}
	if view.Sort.Field != "" {
		opts.Sort = string(view.Sort.Field)
		opts.Order = string(view.Sort.Direction)
	}
	return opts, nil
}
