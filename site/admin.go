package site

// Operator screens for the records authors don't manage themselves:
// categories and locations. Mounted behind StaffOnlyMiddleware.

import (
	"net/http"

	"github.com/gosimple/slug"

	"quill/database"
)

type categoryFormData struct {
	Category *database.Category // nil on the create page
	Error    string
}

type locationFormData struct {
	Location *database.Location
	Error    string
}

func AdminCategoryList(w http.ResponseWriter, r *http.Request) {
	var categories []database.Category
	result := database.GetDB().Order("title").Find(&categories)
	if result.Error != nil {
		http.Error(w, "Error fetching categories", http.StatusInternalServerError)
		return
	}

	RenderTemplate(w, r, "admin/categories", categories)
}

func AdminCreateCategory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		RenderTemplate(w, r, "admin/category_form", categoryFormData{})

	case "POST":
		category := database.Category{
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
			Slug:        r.FormValue("slug"),
			IsPublished: r.FormValue("is_published") == "on",
		}
		if category.Slug == "" {
			category.Slug = slug.Make(category.Title)
		}
		if category.Title == "" {
			RenderTemplate(w, r, "admin/category_form", categoryFormData{Error: "Title is required"})
			return
		}

		var existing database.Category
		if err := database.GetDB().Where("slug = ?", category.Slug).First(&existing).Error; err == nil {
			RenderTemplate(w, r, "admin/category_form", categoryFormData{
				Category: &category,
				Error:    "A category with the same slug already exists",
			})
			return
		}

		result := database.GetDB().Create(&category)
		if result.Error != nil {
			http.Error(w, "Error creating category", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/admin/categories", http.StatusSeeOther)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func AdminEditCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := parseIDParam(r, "categoryID")
	if !ok {
		http.Error(w, "Category not found", http.StatusNotFound)
		return
	}

	var category database.Category
	result := database.GetDB().First(&category, categoryID)
	if result.Error != nil {
		http.Error(w, "Category not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case "GET":
		RenderTemplate(w, r, "admin/category_form", categoryFormData{Category: &category})

	case "POST":
		category.Title = r.FormValue("title")
		category.Description = r.FormValue("description")
		category.IsPublished = r.FormValue("is_published") == "on"
		if newSlug := r.FormValue("slug"); newSlug != "" {
			category.Slug = newSlug
		}

		var existing database.Category
		err := database.GetDB().Where("slug = ?", category.Slug).First(&existing).Error
		if err == nil && existing.ID != category.ID {
			RenderTemplate(w, r, "admin/category_form", categoryFormData{
				Category: &category,
				Error:    "A category with the same slug already exists",
			})
			return
		}

		result = database.GetDB().Save(&category)
		if result.Error != nil {
			http.Error(w, "Error updating category", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/admin/categories", http.StatusSeeOther)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func AdminDeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := parseIDParam(r, "categoryID")
	if !ok {
		http.Error(w, "Category not found", http.StatusNotFound)
		return
	}

	var category database.Category
	result := database.GetDB().First(&category, categoryID)
	if result.Error != nil {
		http.Error(w, "Category not found", http.StatusNotFound)
		return
	}

	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := database.DeleteCategory(database.GetDB(), &category); err != nil {
		http.Error(w, "Error deleting category", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin/categories", http.StatusSeeOther)
}

func AdminLocationList(w http.ResponseWriter, r *http.Request) {
	var locations []database.Location
	result := database.GetDB().Order("name").Find(&locations)
	if result.Error != nil {
		http.Error(w, "Error fetching locations", http.StatusInternalServerError)
		return
	}

	RenderTemplate(w, r, "admin/locations", locations)
}

func AdminCreateLocation(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		RenderTemplate(w, r, "admin/location_form", locationFormData{})

	case "POST":
		location := database.Location{
			Name:        r.FormValue("name"),
			IsPublished: r.FormValue("is_published") == "on",
		}
		if location.Name == "" {
			RenderTemplate(w, r, "admin/location_form", locationFormData{Error: "Name is required"})
			return
		}

		result := database.GetDB().Create(&location)
		if result.Error != nil {
			http.Error(w, "Error creating location", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/admin/locations", http.StatusSeeOther)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func AdminEditLocation(w http.ResponseWriter, r *http.Request) {
	locationID, ok := parseIDParam(r, "locationID")
	if !ok {
		http.Error(w, "Location not found", http.StatusNotFound)
		return
	}

	var location database.Location
	result := database.GetDB().First(&location, locationID)
	if result.Error != nil {
		http.Error(w, "Location not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case "GET":
		RenderTemplate(w, r, "admin/location_form", locationFormData{Location: &location})

	case "POST":
		location.Name = r.FormValue("name")
		location.IsPublished = r.FormValue("is_published") == "on"

		result = database.GetDB().Save(&location)
		if result.Error != nil {
			http.Error(w, "Error updating location", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/admin/locations", http.StatusSeeOther)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func AdminDeleteLocation(w http.ResponseWriter, r *http.Request) {
	locationID, ok := parseIDParam(r, "locationID")
	if !ok {
		http.Error(w, "Location not found", http.StatusNotFound)
		return
	}

	var location database.Location
	result := database.GetDB().First(&location, locationID)
	if result.Error != nil {
		http.Error(w, "Location not found", http.StatusNotFound)
		return
	}

	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := database.DeleteLocation(database.GetDB(), &location); err != nil {
		http.Error(w, "Error deleting location", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin/locations", http.StatusSeeOther)
}
