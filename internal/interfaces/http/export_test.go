package http

// ActorFrom expone actorFrom a los tests de http_test.
var ActorFrom = actorFrom
