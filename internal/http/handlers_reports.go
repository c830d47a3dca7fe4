package http

import (
	"net/http"
)

func (s *Server) handleReportYears(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reports.Years())
}

func (s *Server) handleReportCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reports.Categories())
}

// yearAndTop parses the common {year} and ?top=N parameters.
func (s *Server) yearAndTop(r *http.Request) (int, int, error) {
	year, err := parseYear(r)
	if err != nil {
		return 0, 0, err
	}
	top, err := parseTop(r, s.topN)
	if err != nil {
		return 0, 0, err
	}
	return year, top, nil
}

func (s *Server) handleYearReport(w http.ResponseWriter, r *http.Request) {
	year, top, err := s.yearAndTop(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.reports.YearReport(year, top))
}

func (s *Server) handleTopBooks(w http.ResponseWriter, r *http.Request) {
	year, top, err := s.yearAndTop(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.reports.TopBooks(year, top))
}

func (s *Server) handleTopUsers(w http.ResponseWriter, r *http.Request) {
	year, top, err := s.yearAndTop(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.reports.TopUsers(year, top))
}

// handleMatrix takes the columns from ?category=, repeated or comma
// separated, defaulting to every known category.
func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cats := queryList(r, "category")
	if len(cats) == 0 {
		cats = s.reports.Categories()
	}
	writeJSON(w, http.StatusOK, s.reports.MonthCategoryMatrix(year, cats))
}
