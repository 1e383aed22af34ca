package render

import (
	"strconv"

	"golang.org/x/net/html"

	"movie-recommender-web/internal/models"
)

// ModalView is the state of the rating modal.
type ModalView struct {
	MovieID     models.MovieID
	Title       string
	Selected    int
	HasExisting bool
	InWatchlist bool
	InFavorites bool
	Message     string
	// ConfirmRemove replaces the remove button with a confirmation prompt.
	ConfirmRemove bool
}

// Modal renders the rating modal.
func Modal(v ModalView) *html.Node {
	content := El("div", "class", "modal-content")
	content.AppendChild(ElText("h2", v.Title, "id", "rating-modal-title"))
	if v.Message != "" {
		content.AppendChild(Message(Error, v.Message))
	}

	stars := El("div", "class", "star-rating")
	for i := models.MinRating; i <= models.MaxRating; i++ {
		input := El("input", "type", "radio", "name", "rating", "value", strconv.Itoa(i), "id", "star-"+strconv.Itoa(i))
		if i == v.Selected {
			SetAttr(input, "checked", "checked")
		}
		class := "star"
		if i <= v.Selected {
			class += " selected"
		}
		stars.AppendChild(Append(El("label", "for", "star-"+strconv.Itoa(i)),
			input, ElText("span", "★", "class", class)))
	}
	content.AppendChild(Append(El("form", "method", "post", "action", "/rate", "id", "rating-form"),
		stars,
		ElText("button", "Save Rating", "type", "submit", "id", "rating-modal-submit"),
	))

	if v.HasExisting {
		if v.ConfirmRemove {
			content.AppendChild(Confirm(`Remove your rating for "`+v.Title+`"?`, "/rate/remove", nil, "/rate?movie_id="+v.MovieID.String()))
		} else {
			content.AppendChild(postButton("/rate/remove", "Remove Rating", "rating-modal-remove", "btn-danger"))
		}
	}

	watchlist := postButton("/rate/watchlist", "🔖 Add to Watchlist", "rating-modal-watchlist", "btn-watchlist")
	if v.InWatchlist {
		watchlist = postButton("/rate/watchlist", "🔖 In Watchlist", "rating-modal-watchlist", "btn-watchlist active")
	}
	favorite := postButton("/rate/favorite", "♥ Add to Favorites", "rating-modal-favorite", "btn-favorite")
	if v.InFavorites {
		favorite = postButton("/rate/favorite", "♥ Favorited", "rating-modal-favorite", "btn-favorite active")
	}
	Append(content, watchlist, favorite,
		postButton("/rate/close", "Cancel", "rating-modal-cancel", "btn-secondary"))

	return Append(El("div", "id", "rating-modal", "class", "modal", "data-movie-id", v.MovieID.String()), content)
}

func postButton(action, label, id, class string) *html.Node {
	return Append(El("form", "method", "post", "action", action),
		ElText("button", label, "type", "submit", "id", id, "class", class))
}

// Layout is the chrome shared by every page.
type Layout struct {
	Title       string
	Active      string
	Username    string
	LoginStatus string
	LoginError  bool
	Query       string
}

var navLinks = [][2]string{
	{"home", "/"},
	{"browse", "/browse"},
	{"profile", "/profile"},
}

// Page renders a complete document around content.
func Page(l Layout, content ...*html.Node) *html.Node {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	head := Append(El("head"),
		El("meta", "charset", "utf-8"),
		ElText("title", l.Title),
		El("link", "rel", "stylesheet", "href", "/static/style.css"),
	)

	body := El("body")
	if l.Username != "" {
		SetAttr(body, "class", "logged-in")
	}
	Append(body, header(l), Append(El("main", "id", "output"), content...))

	doc.AppendChild(Append(El("html", "lang", "en"), head, body))
	return doc
}

func header(l Layout) *html.Node {
	nav := El("nav", "class", "nav-links")
	for _, link := range navLinks {
		a := ElText("a", titleCase(link[0]), "href", link[1], "id", "nav_"+link[0])
		if link[0] == l.Active {
			SetAttr(a, "class", "active")
		}
		nav.AppendChild(a)
	}

	search := Append(El("form", "method", "get", "action", "/search", "class", "search-form"),
		El("input", "type", "search", "name", "q", "id", "search_input", "value", l.Query,
			"placeholder", "Search movies", "autocomplete", "off"),
		ElText("button", "Search", "type", "submit", "id", "search_button"),
	)

	return Append(El("header", "class", "site-header"), nav, search, loginBox(l))
}

func loginBox(l Layout) *html.Node {
	status := El("small", "id", "login_status", "class", "login-status", "aria-live", "polite")
	if l.LoginError {
		SetAttr(status, "class", "login-status error")
	}

	if l.Username != "" {
		msg := l.LoginStatus
		if msg == "" {
			msg = "Logged in"
		}
		status.AppendChild(Text(msg))
		return Append(El("form", "method", "post", "action", "/logout", "id", "login_form"),
			ElText("span", l.Username, "class", "nav-username", "id", "nav_username"),
			ElText("button", "Logout", "type", "submit", "id", "logout_button"),
			status,
		)
	}
	if l.LoginStatus != "" {
		status.AppendChild(Text(l.LoginStatus))
	}
	return Append(El("form", "method", "post", "action", "/login", "id", "login_form"),
		El("input", "type", "text", "name", "username", "id", "username", "placeholder", "Username"),
		ElText("button", "Login", "type", "submit", "id", "login_button"),
		status,
	)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
